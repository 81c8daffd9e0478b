package oauth2

import (
	"net/url"
	"strings"
)

// FormField is one name/value pair of an application/x-www-form-urlencoded body.
type FormField struct {
	Name  string
	Value string
}

// EncodeForm encodes fields in order, skipping empty values. Values are
// percent-encoded with spaces as '+'; names are written as given.
func EncodeForm(fields []FormField) string {
	var sb strings.Builder
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(f.Name)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f.Value))
	}
	return sb.String()
}
