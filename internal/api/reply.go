package api

import "github.com/tidwall/gjson"

// extractReply returns the reply text for a successful body. Without a
// field path the body is used verbatim. With one, a JSON body holding that
// path yields the field's string value; anything else falls back to the body.
func extractReply(body []byte, field string) string {
	if field == "" || !gjson.ValidBytes(body) {
		return string(body)
	}

	result := gjson.GetBytes(body, field)
	if !result.Exists() {
		return string(body)
	}
	return result.String()
}
