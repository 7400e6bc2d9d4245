package identity

import "slices"

// Group ties a member group tag to the permissions that grant viewing its
// events and signing up for them.
type Group struct {
	Name             string `yaml:"name" json:"name"`
	ViewPermission   string `yaml:"viewPermission" json:"viewPermission"`
	SignupPermission string `yaml:"signupPermission" json:"signupPermission"`
}

// DefaultGroups are the two groups the organization runs.
func DefaultGroups() []Group {
	return []Group{
		{Name: "DutchGarrison", ViewPermission: "view:dgevents", SignupPermission: "signup:dgevent"},
		{Name: "DuneSeaBase", ViewPermission: "view:dsbevents", SignupPermission: "signup:dsbevent"},
	}
}

// GroupPolicy resolves permission sets to group tags.
type GroupPolicy struct {
	groups []Group
}

func NewGroupPolicy(groups []Group) GroupPolicy {
	return GroupPolicy{groups: slices.Clone(groups)}
}

// ViewGroups returns the groups whose events the permissions may list.
func (p GroupPolicy) ViewGroups(permissions []string) []string {
	out := []string{}
	for _, g := range p.groups {
		if slices.Contains(permissions, g.ViewPermission) {
			out = append(out, g.Name)
		}
	}
	return out
}

// CanSignUpFor reports whether permissions grant signup for any of
// eventGroups.
func (p GroupPolicy) CanSignUpFor(permissions, eventGroups []string) bool {
	for _, g := range p.groups {
		if slices.Contains(eventGroups, g.Name) && slices.Contains(permissions, g.SignupPermission) {
			return true
		}
	}
	return false
}
