package auth

// Gate is the static operator allow-list. Every privileged handler asks it
// before touching anything else; non-operators are dropped silently so the
// existence of admin features never leaks.
type Gate struct {
	operators map[int64]struct{}
	ordered   []int64
}

func NewGate(operatorIDs []int64) *Gate {
	operators := make(map[int64]struct{}, len(operatorIDs))
	ordered := make([]int64, 0, len(operatorIDs))
	for _, id := range operatorIDs {
		if _, seen := operators[id]; seen {
			continue
		}
		operators[id] = struct{}{}
		ordered = append(ordered, id)
	}
	return &Gate{operators: operators, ordered: ordered}
}

func (g *Gate) IsOperator(id int64) bool {
	_, ok := g.operators[id]
	return ok
}

// Operators returns the allow-list in configuration order, for fan-out
// notifications.
func (g *Gate) Operators() []int64 {
	return g.ordered
}
