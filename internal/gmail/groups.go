package gmail

import (
	"context"
	"fmt"
	"strings"

	peoplev1 "google.golang.org/api/people/v1"

	"github.com/ppiankov/mailwarden/internal/trust"
)

// groupPageSize bounds contact-group listing and member expansion.
const groupPageSize = 1000

// Expand resolves a group reference to its members' email addresses.
// Name references are matched case-insensitively against the contact
// group's display name; id references go straight to the resource.
func (c *Client) Expand(ctx context.Context, ref trust.Entry) ([]string, error) {
	resourceName, err := c.resolveGroupResource(ctx, ref)
	if err != nil {
		return nil, err
	}
	group, err := c.people.ContactGroups.Get(resourceName).MaxMembers(groupPageSize).Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIErr("get contact group", "group", ref.Value, err)
	}
	return c.memberEmails(ctx, group.MemberResourceNames)
}

// EnsureGroup returns the id of the named group, creating it when absent.
func (c *Client) EnsureGroup(ctx context.Context, name string) (string, error) {
	if id, err := c.findGroupByName(ctx, name); err == nil {
		return id, nil
	} else if !isNotFound(err) {
		return "", err
	}
	created, err := c.people.ContactGroups.Create(&peoplev1.CreateContactGroupRequest{
		ContactGroup: &peoplev1.ContactGroup{Name: name},
	}).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIErr("create contact group", "", "", err)
	}
	return created.ResourceName, nil
}

// AddMembers creates a contact per email and adds them all to the group.
func (c *Client) AddMembers(ctx context.Context, groupID string, emails []string) error {
	resources := make([]string, 0, len(emails))
	for _, email := range emails {
		person, err := c.people.People.CreateContact(&peoplev1.Person{
			EmailAddresses: []*peoplev1.EmailAddress{{Value: email}},
		}).Context(ctx).Do()
		if err != nil {
			return wrapAPIErr(fmt.Sprintf("create contact %s", email), "", "", err)
		}
		resources = append(resources, person.ResourceName)
	}
	_, err := c.people.ContactGroups.Members.Modify(normalizeGroupResource(groupID),
		&peoplev1.ModifyContactGroupMembersRequest{ResourceNamesToAdd: resources}).Context(ctx).Do()
	return wrapAPIErr("add group members", "group", groupID, err)
}

// RemoveMembers drops every group member whose email matches one of the
// given addresses. Unmatched addresses are ignored.
func (c *Client) RemoveMembers(ctx context.Context, groupID string, emails []string) error {
	var toRemove []string
	for _, email := range emails {
		matches, err := c.FindMembersByEmail(ctx, groupID, email)
		if err != nil {
			return err
		}
		toRemove = append(toRemove, matches...)
	}
	if len(toRemove) == 0 {
		return nil
	}
	_, err := c.people.ContactGroups.Members.Modify(normalizeGroupResource(groupID),
		&peoplev1.ModifyContactGroupMembersRequest{ResourceNamesToRemove: toRemove}).Context(ctx).Do()
	return wrapAPIErr("remove group members", "group", groupID, err)
}

// FindMembersByEmail returns the person resource names of group members
// carrying the given address. Comparison is case-insensitive.
func (c *Client) FindMembersByEmail(ctx context.Context, groupID, email string) ([]string, error) {
	group, err := c.people.ContactGroups.Get(normalizeGroupResource(groupID)).MaxMembers(groupPageSize).Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIErr("get contact group", "group", groupID, err)
	}
	want := strings.ToLower(strings.TrimSpace(email))
	var out []string
	err = c.forEachMember(ctx, group.MemberResourceNames, func(p *peoplev1.Person) {
		for _, e := range p.EmailAddresses {
			if strings.ToLower(strings.TrimSpace(e.Value)) == want {
				out = append(out, p.ResourceName)
				return
			}
		}
	})
	return out, err
}

func (c *Client) resolveGroupResource(ctx context.Context, ref trust.Entry) (string, error) {
	switch ref.Kind {
	case trust.EntryGroupID:
		return normalizeGroupResource(ref.Value), nil
	case trust.EntryGroupName:
		return c.findGroupByName(ctx, ref.Value)
	}
	return "", fmt.Errorf("not a group reference: %q", ref.Raw)
}

func (c *Client) findGroupByName(ctx context.Context, name string) (string, error) {
	resp, err := c.people.ContactGroups.List().PageSize(groupPageSize).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIErr("list contact groups", "", "", err)
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for _, g := range resp.ContactGroups {
		if strings.ToLower(g.Name) == want || strings.ToLower(g.FormattedName) == want {
			return g.ResourceName, nil
		}
	}
	return "", notFoundGroup(name)
}

// memberEmails resolves person resources to their email addresses.
func (c *Client) memberEmails(ctx context.Context, members []string) ([]string, error) {
	var emails []string
	err := c.forEachMember(ctx, members, func(p *peoplev1.Person) {
		for _, e := range p.EmailAddresses {
			if e.Value != "" {
				emails = append(emails, e.Value)
			}
		}
	})
	return emails, err
}

// batchGetLimit is the People API cap on resource names per batch get.
const batchGetLimit = 200

func (c *Client) forEachMember(ctx context.Context, members []string, fn func(*peoplev1.Person)) error {
	for start := 0; start < len(members); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(members) {
			end = len(members)
		}
		resp, err := c.people.People.GetBatchGet().
			ResourceNames(members[start:end]...).
			PersonFields("emailAddresses").
			Context(ctx).Do()
		if err != nil {
			return wrapAPIErr("batch get contacts", "", "", err)
		}
		for _, r := range resp.Responses {
			if r.Person != nil {
				fn(r.Person)
			}
		}
	}
	return nil
}

// normalizeGroupResource accepts either a bare group id or a full
// resource name and returns the resource-name form.
func normalizeGroupResource(id string) string {
	if strings.HasPrefix(id, "contactGroups/") {
		return id
	}
	return "contactGroups/" + id
}
