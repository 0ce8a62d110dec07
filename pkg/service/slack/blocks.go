package slack

import (
	"fmt"
	"sort"

	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/slack-go/slack"
)

const digestTitle = "New Notifications"

// digestPreviewLimit caps comment body length inside a digest so one
// long comment does not dominate the batch.
const digestPreviewLimit = 200

func shareFallbackText(n *model.ShareNotice) string {
	return fmt.Sprintf("%s shared a %s with you: %s", n.OwnerName, n.FileType, n.FileName)
}

func commentFallbackText(n *model.CommentNotice) string {
	return fmt.Sprintf("%s commented on %s", n.AuthorName, n.FileName)
}

func buildShareBlocks(n *model.ShareNotice) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("*%s* shared a %s with you", n.OwnerName, n.FileType),
				false, false),
			nil, nil),
		fileSection(n.FileName, n.FileURL, n.FileIconURL),
	}

	ctxElems := []slack.MixedElement{}
	if n.OwnerAvatarURL != "" {
		ctxElems = append(ctxElems, slack.NewImageBlockElement(n.OwnerAvatarURL, n.OwnerName))
	}
	ctxElems = append(ctxElems, slack.NewTextBlockObject(slack.MarkdownType,
		fmt.Sprintf("%s <%s>", n.OwnerName, n.OwnerEmail), false, false))
	blocks = append(blocks, slack.NewContextBlock("", ctxElems...))

	return blocks
}

func buildCommentBlocks(n *model.CommentNotice) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("*%s* commented on <%s|%s>", n.AuthorName, n.FileURL, n.FileName),
				false, false),
			nil, nil),
	}

	if n.QuotedContent != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("_%s_", n.QuotedContent), false, false)))
	}

	blocks = append(blocks,
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, quote(n.CommentContent), false, false),
			nil, nil))

	ctxElems := []slack.MixedElement{}
	if n.AuthorAvatarURL != "" {
		ctxElems = append(ctxElems, slack.NewImageBlockElement(n.AuthorAvatarURL, n.AuthorName))
	}
	ctxElems = append(ctxElems, slack.NewTextBlockObject(slack.MarkdownType,
		fmt.Sprintf("%s <%s>", n.AuthorName, n.AuthorEmail), false, false))
	blocks = append(blocks, slack.NewContextBlock("", ctxElems...))

	return blocks
}

func buildDigestBlocks(d *model.DigestBatch) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, digestTitle, false, false)),
	}

	// Group buffered comments per file so one noisy document reads as
	// one section.
	byFile := map[string][]model.CommentNotice{}
	var order []string
	for _, n := range d.Comments {
		key := string(n.FileID)
		if _, ok := byFile[key]; !ok {
			order = append(order, key)
		}
		byFile[key] = append(byFile[key], n)
	}
	sort.Strings(order)

	for _, key := range order {
		group := byFile[key]
		first := group[0]

		blocks = append(blocks, slack.NewDividerBlock())
		blocks = append(blocks, fileSection(first.FileName, first.FileURL, first.FileIconURL))

		for _, n := range group {
			body := n.CommentContent
			if len(body) > digestPreviewLimit {
				body = body[:digestPreviewLimit] + "..."
			}
			blocks = append(blocks, slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType,
					fmt.Sprintf("*%s*: %s", n.AuthorName, body), false, false),
				nil, nil))
		}
	}

	return blocks
}

func fileSection(name, url, iconURL string) *slack.SectionBlock {
	text := slack.NewTextBlockObject(slack.MarkdownType,
		fmt.Sprintf("<%s|%s>", url, name), false, false)
	var accessory *slack.Accessory
	if iconURL != "" {
		accessory = slack.NewAccessory(slack.NewImageBlockElement(iconURL, name))
	}
	return slack.NewSectionBlock(text, nil, accessory)
}

func quote(s string) string {
	return "> " + s
}
