// Package markdown renders Markdown message bodies into HTML fragments with
// goldmark. It backs text, ul and ol content blocks whose message carries no
// formatted body.
package markdown
