package document

import "testing"

func TestComputeAffiliation(t *testing.T) {
	owner := GroupKey{Namespace: "group", Name: "owner"}
	member := GroupKey{Namespace: "group", Name: "member"}
	other := GroupKey{Namespace: "group", Name: "other"}

	cases := []struct {
		name       string
		userGroups GroupSet
		admins     GroupSet
		members    GroupSet
		want       Affiliation
	}{
		{
			name:       "admin takes precedence over member",
			userGroups: NewGroupSet(owner, member),
			admins:     NewGroupSet(owner),
			members:    NewGroupSet(member),
			want:       AffiliationAdmin,
		},
		{
			name:       "member only",
			userGroups: NewGroupSet(member),
			admins:     NewGroupSet(owner),
			members:    NewGroupSet(member),
			want:       AffiliationMember,
		},
		{
			name:       "no overlap",
			userGroups: NewGroupSet(other),
			admins:     NewGroupSet(owner),
			members:    NewGroupSet(member),
			want:       AffiliationNone,
		},
		{
			name:       "empty user groups",
			userGroups: NewGroupSet(),
			admins:     NewGroupSet(owner),
			members:    NewGroupSet(member),
			want:       AffiliationNone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeAffiliation(tc.userGroups, tc.admins, tc.members)
			if got != tc.want {
				t.Fatalf("ComputeAffiliation() = %q, want %q", got, tc.want)
			}
		})
	}
}
