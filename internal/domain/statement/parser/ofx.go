package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/libroazul/libroazul/internal/domain/statement/normalizer"
)

const ofxParserName = "ofx"

// Tags read from each <STMTTRN> block and the surrounding statement
var (
	ofxStartPattern = regexp.MustCompile(`(?i)<STMTTRN>`)
	ofxEndPattern   = regexp.MustCompile(`(?i)</STMTTRN>`)
	ofxTagPatterns  = map[string]*regexp.Regexp{
		"CURDEF":   ofxTagPattern("CURDEF"),
		"ACCTID":   ofxTagPattern("ACCTID"),
		"TRNAMT":   ofxTagPattern("TRNAMT"),
		"DTPOSTED": ofxTagPattern("DTPOSTED"),
		"MEMO":     ofxTagPattern("MEMO"),
		"NAME":     ofxTagPattern("NAME"),
		"FITID":    ofxTagPattern("FITID"),
		"REFNUM":   ofxTagPattern("REFNUM"),
		"TRNTYPE":  ofxTagPattern("TRNTYPE"),
	}
)

func ofxTagPattern(tag string) *regexp.Regexp {
	// SGML values run to the next tag or end of line; no closing tag required
	return regexp.MustCompile(`(?i)<` + tag + `>\s*([^<\r\n]*)`)
}

// OFXConfig overrides the built-in currency mapping. Zero value keeps the
// defaults.
type OFXConfig struct {
	// CurrencyMap maps CURDEF values to the supported ISO codes. Anything
	// absent falls back to the account default.
	CurrencyMap map[string]string
}

// OFXParser reads OFX 1.x SGML bank statement exports: a header, account
// context, then a flat list of <STMTTRN> field/value blocks.
type OFXParser struct {
	cfg OFXConfig
}

// NewOFXParser creates the structured transaction-list parser
func NewOFXParser(cfg OFXConfig) *OFXParser {
	if cfg.CurrencyMap == nil {
		cfg.CurrencyMap = map[string]string{
			"USD":    "USD",
			"PAB":    "PAB",
			"BALBOA": "PAB",
		}
	}
	return &OFXParser{cfg: cfg}
}

func (p *OFXParser) Name() string { return ofxParserName }

// Detect looks for the OFX envelope or transaction-list section markers.
// This signature is checked before the tabular heuristic; ambiguous content
// resolves here.
func (p *OFXParser) Detect(content []byte) bool {
	probe := content
	if len(probe) > 64*1024 {
		probe = probe[:64*1024]
	}
	upper := strings.ToUpper(string(probe))
	if strings.Contains(upper, "OFXHEADER") || strings.Contains(upper, "<OFX>") {
		return true
	}
	return strings.Contains(upper, "<BANKTRANLIST>") || strings.Contains(upper, "<STMTTRN>")
}

// Parse extracts the account context once, then walks every transaction
// block in document order. Blocks missing amount, date or memo are treated
// as non-transaction noise and skipped without an error entry; a malformed
// posted date in an otherwise complete block is a per-block error and
// parsing continues. Output is sorted by posted date, most recent first.
func (p *OFXParser) Parse(content []byte, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	doc := string(content)

	currency := p.resolveCurrency(tagValue(doc, "CURDEF"), opts.DefaultCurrency)
	acctID := tagValue(doc, "ACCTID")

	blocks := splitBlocks(doc)
	result := &Result{}

	for i, block := range blocks {
		if result.TotalRows >= opts.MaxRows {
			break
		}
		result.TotalRows++

		amountStr := tagValue(block, "TRNAMT")
		dateStr := tagValue(block, "DTPOSTED")
		memo := tagValue(block, "MEMO")
		if memo == "" {
			memo = tagValue(block, "NAME")
		}

		// Internally consistent exports only carry complete blocks; anything
		// else is noise, not an error.
		if amountStr == "" || dateStr == "" || memo == "" {
			result.SkippedRows++
			continue
		}

		postedAt, err := parseOFXDate(dateStr, opts.Location)
		if err != nil {
			result.Errors = append(result.Errors, RowError{
				Row:     i + 1,
				Message: err.Error(),
				Data:    dateStr,
			})
			continue
		}

		amount, err := parseOFXAmount(amountStr)
		if err != nil {
			result.Errors = append(result.Errors, RowError{
				Row:     i + 1,
				Message: fmt.Sprintf("invalid amount: %v", err),
				Data:    amountStr,
			})
			continue
		}

		description := normalizer.CleanDescription(memo)
		reference := tagValue(block, "FITID")
		if reference == "" {
			reference = tagValue(block, "REFNUM")
		}

		row := NormalizedRow{
			PostedAt:    postedAt,
			Description: description,
			Reference:   reference,
			Amount:      amount,
			Currency:    currency,
			Raw: map[string]any{
				"parser":    ofxParserName,
				"block":     i + 1,
				"acct_id":   acctID,
				"fitid":     tagValue(block, "FITID"),
				"refnum":    tagValue(block, "REFNUM"),
				"trntype":   tagValue(block, "TRNTYPE"),
				"dtposted":  dateStr,
				"parsed_at": time.Now().UTC().Format(time.RFC3339),
			},
		}

		if opts.Extractor.IsInternalTransfer(description) {
			row.IsInternalTransfer = true
			row.MerchantName = normalizer.InternalTransferLabel
		} else {
			row.MerchantName = opts.Extractor.FromBankRecord(description)
		}

		result.Rows = append(result.Rows, row)
	}

	sort.SliceStable(result.Rows, func(a, b int) bool {
		return result.Rows[a].PostedAt.After(result.Rows[b].PostedAt.Time)
	})

	return result, nil
}

func (p *OFXParser) resolveCurrency(curdef, fallback string) string {
	if code, ok := p.cfg.CurrencyMap[strings.ToUpper(strings.TrimSpace(curdef))]; ok {
		return code
	}
	return fallback
}

// splitBlocks returns the content of each <STMTTRN> block in document order
func splitBlocks(doc string) []string {
	starts := ofxStartPattern.FindAllStringIndex(doc, -1)
	blocks := make([]string, 0, len(starts))

	for i, start := range starts {
		from := start[1]
		to := len(doc)
		if i+1 < len(starts) {
			to = starts[i+1][0]
		}
		block := doc[from:to]
		if end := ofxEndPattern.FindStringIndex(block); end != nil {
			block = block[:end[0]]
		}
		blocks = append(blocks, block)
	}

	return blocks
}

func tagValue(doc, tag string) string {
	re, ok := ofxTagPatterns[tag]
	if !ok {
		return ""
	}
	m := re.FindStringSubmatch(doc)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// parseOFXDate reads the date-only prefix of a YYYYMMDDhhmmss[.zzz] stamp
func parseOFXDate(raw string, loc *time.Location) (Date, error) {
	if len(raw) < 8 || !allDigits(raw[:8]) {
		return Date{}, fmt.Errorf("malformed posted date, expected YYYYMMDD prefix")
	}
	t, err := time.ParseInLocation("20060102", raw[:8], loc)
	if err != nil {
		return Date{}, fmt.Errorf("malformed posted date: %v", err)
	}
	return NewDate(t), nil
}

// parseOFXAmount reads a signed decimal; the format already carries sign
func parseOFXAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.TrimPrefix(raw, "+"))
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
