package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/ppiankov/mailwarden/internal/model"
)

const user = "me"

// listPageSize is the maximum ids requested per page. Gmail caps at 500.
const listPageSize = 500

// List returns one page of message ids matching the query, with the
// continuation token for the next page.
func (c *Client) List(ctx context.Context, query, pageToken string) ([]string, string, error) {
	call := c.gmail.Users.Messages.List(user).Q(query).MaxResults(listPageSize).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, "", wrapAPIErr("list messages", "", "", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, resp.NextPageToken, nil
}

// BatchModify applies the label action to all ids in one call.
func (c *Client) BatchModify(ctx context.Context, ids []string, action model.RuleAction) error {
	req := &gmailv1.BatchModifyMessagesRequest{
		Ids:            ids,
		AddLabelIds:    action.AddLabelIDs,
		RemoveLabelIds: action.RemoveLabelIDs,
	}
	err := c.gmail.Users.Messages.BatchModify(user, req).Context(ctx).Do()
	return wrapAPIErr("batch modify", "", "", err)
}

// Modify applies the label action to a single message.
func (c *Client) Modify(ctx context.Context, id string, action model.RuleAction) error {
	req := &gmailv1.ModifyMessageRequest{
		AddLabelIds:    action.AddLabelIDs,
		RemoveLabelIds: action.RemoveLabelIDs,
	}
	_, err := c.gmail.Users.Messages.Modify(user, id, req).Context(ctx).Do()
	return wrapAPIErr("modify message", "message", id, err)
}

// Send transmits the message and returns its id.
func (c *Client) Send(ctx context.Context, msg model.OutboundMessage) (string, error) {
	sent, err := c.gmail.Users.Messages.Send(user, &gmailv1.Message{Raw: encodeRFC822(msg)}).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIErr("send message", "", "", err)
	}
	return sent.Id, nil
}

// CreateDraft saves the message as a draft and returns the draft id.
func (c *Client) CreateDraft(ctx context.Context, msg model.OutboundMessage) (string, error) {
	draft := &gmailv1.Draft{Message: &gmailv1.Message{Raw: encodeRFC822(msg)}}
	created, err := c.gmail.Users.Drafts.Create(user, draft).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIErr("create draft", "", "", err)
	}
	return created.Id, nil
}

// encodeRFC822 renders a minimal plain-text RFC 822 message and encodes
// it the way the API expects raw message bodies: base64url, no padding
// concerns on the decode side.
func encodeRFC822(msg model.OutboundMessage) string {
	var b strings.Builder
	writeAddrHeader(&b, "To", msg.To)
	writeAddrHeader(&b, "Cc", msg.Cc)
	writeAddrHeader(&b, "Bcc", msg.Bcc)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

func writeAddrHeader(b *strings.Builder, name string, addrs []string) {
	if len(addrs) == 0 {
		return
	}
	clean := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a = sanitizeHeader(a); a != "" {
			clean = append(clean, a)
		}
	}
	if len(clean) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\r\n", name, strings.Join(clean, ", "))
}

// sanitizeHeader strips CR/LF so request fields cannot inject headers.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// CreateFilter registers a filter and returns its id.
func (c *Client) CreateFilter(ctx context.Context, sel model.RuleSelector, action model.RuleAction) (string, error) {
	created, err := c.gmail.Users.Settings.Filters.Create(user, &gmailv1.Filter{
		Criteria: toCriteria(sel),
		Action: &gmailv1.FilterAction{
			AddLabelIds:    action.AddLabelIDs,
			RemoveLabelIds: action.RemoveLabelIDs,
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIErr("create filter", "", "", err)
	}
	return created.Id, nil
}

// GetFilter fetches one filter by id.
func (c *Client) GetFilter(ctx context.Context, id string) (model.RuleSelector, model.RuleAction, error) {
	f, err := c.gmail.Users.Settings.Filters.Get(user, id).Context(ctx).Do()
	if err != nil {
		return model.RuleSelector{}, model.RuleAction{}, wrapAPIErr("get filter", "filter", id, err)
	}
	var action model.RuleAction
	if f.Action != nil {
		action.AddLabelIDs = f.Action.AddLabelIds
		action.RemoveLabelIDs = f.Action.RemoveLabelIds
	}
	return fromCriteria(f.Criteria), action, nil
}

// DeleteFilter removes a filter by id.
func (c *Client) DeleteFilter(ctx context.Context, id string) error {
	err := c.gmail.Users.Settings.Filters.Delete(user, id).Context(ctx).Do()
	return wrapAPIErr("delete filter", "filter", id, err)
}

// ListFilters returns all filter ids.
func (c *Client) ListFilters(ctx context.Context) ([]string, error) {
	resp, err := c.gmail.Users.Settings.Filters.List(user).Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIErr("list filters", "", "", err)
	}
	ids := make([]string, 0, len(resp.Filter))
	for _, f := range resp.Filter {
		ids = append(ids, f.Id)
	}
	return ids, nil
}

func toCriteria(sel model.RuleSelector) *gmailv1.FilterCriteria {
	crit := &gmailv1.FilterCriteria{
		From:          sel.From,
		To:            sel.To,
		Subject:       sel.Subject,
		Query:         sel.Query,
		HasAttachment: sel.HasAttachment,
	}
	if sel.SizeBytes > 0 {
		crit.Size = sel.SizeBytes
		crit.SizeComparison = string(model.SizeLarger)
		if sel.SizeComparison == model.SizeSmaller {
			crit.SizeComparison = string(model.SizeSmaller)
		}
	}
	return crit
}

func fromCriteria(crit *gmailv1.FilterCriteria) model.RuleSelector {
	if crit == nil {
		return model.RuleSelector{}
	}
	sel := model.RuleSelector{
		From:          crit.From,
		To:            crit.To,
		Subject:       crit.Subject,
		Query:         crit.Query,
		HasAttachment: crit.HasAttachment,
		SizeBytes:     crit.Size,
	}
	if crit.SizeComparison != "" {
		sel.SizeComparison = model.SizeComparison(crit.SizeComparison)
	}
	return sel
}
