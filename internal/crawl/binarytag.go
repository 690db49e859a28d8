package crawl

import "strings"

// officeTokens are substring-matched against Content-Type first (§4.5.1):
// a handful of common office/document formats get their familiar short
// name instead of whatever subtype string the server happens to send
// (e.g. "vnd.openxmlformats-officedocument.wordprocessingml.document").
var officeTokens = []string{"pdf", "doc", "docx", "ppt", "pptx"}

// DataTypeCode maps a Content-Type header value to the short BinaryPage tag
// used for persistence: a known office-document token, uppercased, if the
// header substring-matches one; otherwise the subtype (the part after "/",
// stripped of any ";charset=..." parameter), uppercased and truncated to 20
// characters.
func DataTypeCode(contentType string) string {
	lower := strings.ToLower(contentType)
	for _, token := range officeTokens {
		if strings.Contains(lower, token) {
			return strings.ToUpper(token)
		}
	}

	subtype := contentType
	if idx := strings.IndexByte(subtype, '/'); idx >= 0 {
		subtype = subtype[idx+1:]
	}
	if idx := strings.IndexByte(subtype, ';'); idx >= 0 {
		subtype = subtype[:idx]
	}
	subtype = strings.TrimSpace(subtype)
	subtype = strings.ToUpper(subtype)
	if len(subtype) > 20 {
		subtype = subtype[:20]
	}
	return subtype
}
