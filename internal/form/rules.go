package form

// Rule makes Dependents editable only while Controller is checked.
type Rule struct {
	Controller string
	Dependents []string
}

// RulesFromFields derives the rules from the Controller column of the field
// table. Rules and dependents keep the table order.
func RulesFromFields(fields []FieldDescriptor) []Rule {
	var rules []Rule
	pos := make(map[string]int)
	for _, f := range fields {
		if f.Controller == "" {
			continue
		}
		i, ok := pos[f.Controller]
		if !ok {
			i = len(rules)
			pos[f.Controller] = i
			rules = append(rules, Rule{Controller: f.Controller})
		}
		rules[i].Dependents = append(rules[i].Dependents, f.ID)
	}
	return rules
}

// isController reports whether id controls any dependent.
func isController(rules []Rule, id string) bool {
	for _, rule := range rules {
		if rule.Controller == id {
			return true
		}
	}
	return false
}
