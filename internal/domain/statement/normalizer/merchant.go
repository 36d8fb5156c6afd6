package normalizer

import (
	"regexp"
	"strings"
)

// InternalTransferLabel is the canonical merchant name assigned to movements
// between the owner's own accounts.
const InternalTransferLabel = "Internal Transfer"

// Transaction prefixes banks prepend to the counterparty name. Compared
// against the diacritic-stripped uppercase description.
var defaultPrefixes = []string{
	"COMPRA EN ",
	"COMPRA ",
	"PAGO A ",
	"PAGO ",
	"ACH A ",
	"ACH DE ",
	"ACH ",
	"TEF A ",
	"DEBITO POR ",
	"RETIRO EN ",
	"PURCHASE AT ",
	"PAYMENT TO ",
	"POS ",
	"VISA ",
	"CLAVE ",
	"BANCA EN LINEA ",
}

// Phrasings of "transfer between own accounts" across the supported bank
// exports. Matched against the folded (lowercase, diacritic-free) description.
var defaultTransferPatterns = []string{
	`transferencia entre cuentas( propias)?`,
	`transferencia a cuenta propia`,
	`traspaso entre cuentas`,
	`transfer between own accounts`,
	`own account transfer`,
}

var (
	trailingRefPattern  = regexp.MustCompile(`\s+[A-Z]{0,3}\d{4,}$`)
	trailingDatePattern = regexp.MustCompile(`(?i)\s+(\d{1,2}/\d{1,2}(/\d{2,4})?|\d{1,2}\s+de\s+[a-z]{3,})\.?$`)
	maskedCardPattern   = regexp.MustCompile(`[X*]{2,}[-\s]?\d{2,4}`)
	longNumberPattern   = regexp.MustCompile(`\b\d{6,}\b`)
	spacePattern        = regexp.MustCompile(`\s+`)
)

// ExtractorConfig overrides the built-in keyword sets. Zero-value fields keep
// the defaults.
type ExtractorConfig struct {
	Prefixes         []string
	TransferPatterns []string
}

// MerchantExtractor derives counterparty names from transaction descriptions
type MerchantExtractor struct {
	prefixes  []string
	transfers []*regexp.Regexp
}

// NewMerchantExtractor creates an extractor with the given overrides
func NewMerchantExtractor(cfg ExtractorConfig) *MerchantExtractor {
	prefixes := cfg.Prefixes
	if len(prefixes) == 0 {
		prefixes = defaultPrefixes
	}
	patterns := cfg.TransferPatterns
	if len(patterns) == 0 {
		patterns = defaultTransferPatterns
	}

	transfers := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		transfers = append(transfers, regexp.MustCompile(p))
	}

	return &MerchantExtractor{prefixes: prefixes, transfers: transfers}
}

// IsInternalTransfer reports whether the description matches a
// transfer-between-own-accounts phrasing.
func (e *MerchantExtractor) IsInternalTransfer(description string) bool {
	folded := FoldForMatch(description)
	for _, re := range e.transfers {
		if re.MatchString(folded) {
			return true
		}
	}
	return false
}

// FromStatementRow extracts a merchant name from a spreadsheet row
// description: strip a known prefix, keep the leading segment before common
// separators, drop trailing dates/reference codes, title-case. Returns ""
// when nothing meaningful remains.
func (e *MerchantExtractor) FromStatementRow(description string) string {
	s := strings.ToUpper(StripDiacritics(CleanDescription(description)))
	s = e.stripPrefix(s)

	// Leading segment only; banks append location/channel after separators.
	for _, sep := range []string{" - ", " / ", "/", "*", "|"} {
		if idx := strings.Index(s, sep); idx > 0 {
			s = s[:idx]
		}
	}

	s = trailingDatePattern.ReplaceAllString(s, "")
	s = trailingRefPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))

	if !hasLetters(s) {
		return ""
	}
	return TitleCase(s)
}

// FromBankRecord extracts a merchant name from an OFX memo: strip prefixes,
// masked card numbers and long numeric ids, then keep the first few tokens.
func (e *MerchantExtractor) FromBankRecord(memo string) string {
	s := strings.ToUpper(StripDiacritics(CleanDescription(memo)))
	s = e.stripPrefix(s)
	s = maskedCardPattern.ReplaceAllString(s, " ")
	s = longNumberPattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))

	tokens := strings.Fields(s)
	if len(tokens) > 4 {
		tokens = tokens[:4]
	}
	s = strings.Join(tokens, " ")

	if !hasLetters(s) {
		return ""
	}
	return TitleCase(s)
}

// stripPrefix repeats until no known prefix remains; exports stack channel
// markers ("COMPRA VISA ...").
func (e *MerchantExtractor) stripPrefix(upper string) string {
	for {
		stripped := false
		for _, prefix := range e.prefixes {
			if strings.HasPrefix(upper, prefix) {
				upper = upper[len(prefix):]
				stripped = true
				break
			}
		}
		if !stripped {
			return upper
		}
	}
}

func hasLetters(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' {
			return true
		}
	}
	return false
}
