package core

// teamMembers is fixed for the life of the process. Callers only ever see
// copies of it.
var teamMembers = [...]string{"Arslan", "Muneer", "Mahima", "Shakshi"}

// TeamMembers returns the team in display order.
func TeamMembers() []string {
	out := make([]string, len(teamMembers))
	copy(out, teamMembers[:])
	return out
}
