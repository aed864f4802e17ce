// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package source

import "encoding/json"

const maxPreviewRunes = 80

// PreviewFromContent extracts the symbol id from a thought's content
// envelope, for example {"Symbol":{"id":"thought_123","data":[...]}}.
// Content that is not such an envelope falls back to a raw prefix.
func PreviewFromContent(raw string) string {
	var envelope struct {
		Symbol struct {
			ID string `json:"id"`
		} `json:"Symbol"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.Symbol.ID != "" {
		return envelope.Symbol.ID
	}

	runes := []rune(raw)
	if len(runes) > maxPreviewRunes {
		return string(runes[:maxPreviewRunes])
	}
	return raw
}
