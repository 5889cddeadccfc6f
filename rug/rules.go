package rug

// =============================================================================
// HIERARCHY RULES - Ordered (predicate, result) table
// =============================================================================

// Rule is one step of the classification hierarchy. Match returns the
// group when the rule applies; ok=false falls through to the next rule.
type Rule struct {
	Name     string
	Category Category
	Match    func(p Profile) (Group, bool)
}

// Rules is evaluated top to bottom; the first match wins. The last rule
// always matches.
var Rules = []Rule{
	{Name: "rehabilitation", Category: CategoryRehabilitation, Match: matchRehabilitation},
	{Name: "extensive_services", Category: CategoryExtensiveServices, Match: matchExtensiveServices},
	{Name: "special_care", Category: CategorySpecialCare, Match: matchSpecialCare},
	{Name: "clinically_complex", Category: CategoryClinicallyComplex, Match: matchClinicallyComplex},
	{Name: "impaired_cognition", Category: CategoryImpairedCognition, Match: matchImpairedCognition},
	{Name: "behaviour_problems", Category: CategoryBehaviourProblems, Match: matchBehaviourProblems},
	{Name: "reduced_physical_function", Category: CategoryPhysicalFunction, Match: matchPhysicalFunction},
}

// lowADLSplit picks the "2" group when more than one IADL item is impaired.
func lowADLSplit(p Profile, high, low Group) Group {
	if p.IADLSum > 1 {
		return high
	}
	return low
}

func matchRehabilitation(p Profile) (Group, bool) {
	if !p.Flags.Has(FlagRehabilitation) {
		return "", false
	}
	switch {
	case p.ADLSum >= 11:
		return "RB0", true
	case p.ADLSum >= 4:
		return lowADLSplit(p, "RA2", "RA1"), true
	}
	return "", false
}

func matchExtensiveServices(p Profile) (Group, bool) {
	if !p.Flags.Has(FlagExtensiveServices) || p.ADLSum < 7 {
		return "", false
	}
	switch {
	case p.ExtensiveCount >= 4:
		return "SE3", true
	case p.ExtensiveCount >= 2:
		return "SE2", true
	default:
		return "SE1", true
	}
}

func matchSpecialCare(p Profile) (Group, bool) {
	lowADLExtensive := p.Flags.Has(FlagExtensiveServices) && p.ADLSum < 7
	if !p.Flags.Has(FlagSpecialCare) && !lowADLExtensive {
		return "", false
	}
	if p.ADLSum >= 14 {
		return "SSB", true
	}
	return "SSA", true
}

func matchClinicallyComplex(p Profile) (Group, bool) {
	if !p.Flags.Any(FlagClinicallyComplex, FlagSpecialCare) {
		return "", false
	}
	switch {
	case p.ADLSum >= 11:
		return "CC0", true
	case p.ADLSum >= 6:
		return "CB0", true
	case p.IADLSum >= 1:
		return "CA2", true
	default:
		return "CA1", true
	}
}

func matchImpairedCognition(p Profile) (Group, bool) {
	if !p.Flags.Has(FlagImpairedCognition) || p.ADLSum > 10 {
		return "", false
	}
	if p.ADLSum >= 6 {
		return "IB0", true
	}
	return lowADLSplit(p, "IA2", "IA1"), true
}

func matchBehaviourProblems(p Profile) (Group, bool) {
	if !p.Flags.Has(FlagBehaviourProblems) || p.ADLSum > 10 {
		return "", false
	}
	if p.ADLSum >= 6 {
		return "BB0", true
	}
	return lowADLSplit(p, "BA2", "BA1"), true
}

func matchPhysicalFunction(p Profile) (Group, bool) {
	switch {
	case p.ADLSum >= 11:
		return "PD0", true
	case p.ADLSum >= 9:
		return "PC0", true
	case p.ADLSum >= 6:
		return "PB0", true
	default:
		return lowADLSplit(p, "PA2", "PA1"), true
	}
}
