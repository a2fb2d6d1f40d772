// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"strings"

	"github.com/yuin/goldmark"

	"github.com/strixbot/strix/messaging"
)

// renderNotice converts a markdown response body into an m.notice
// message with an org.matrix.custom.html formatted body. Plain text
// falls through unchanged as the fallback body; clients without HTML
// support render that.
func renderNotice(markdown string) messaging.MessageContent {
	var html strings.Builder
	if err := goldmark.Convert([]byte(markdown), &html); err != nil {
		return messaging.NewNotice(markdown)
	}
	rendered := strings.TrimSpace(html.String())
	if rendered == "" {
		return messaging.NewNotice(markdown)
	}
	return messaging.NewHTMLNotice(markdown, rendered)
}
