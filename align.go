package littlecheck

// Relation describes how one row of an alignment pairs output with checks.
type Relation int

const (
	// RelEqual pairs a line with a check that matches it.
	RelEqual Relation = iota
	// RelReplace pairs a line with a check that does not match it.
	RelReplace
	// RelExtraActual is a line no check accounts for.
	RelExtraActual
	// RelExtraExpected is a check no line accounts for.
	RelExtraExpected
)

func (r Relation) String() string {
	switch r {
	case RelEqual:
		return "equal"
	case RelReplace:
		return "replace"
	case RelExtraActual:
		return "extra-actual"
	case RelExtraExpected:
		return "extra-expected"
	}
	return "unknown"
}

// A Step is one row of an alignment. Line is nil for RelExtraExpected and
// Check is nil for RelExtraActual.
type Step struct {
	Line     *Line
	Check    *Check
	Relation Relation
}

// Mismatch describes a failed alignment.
//
// Line and Check are the first pair that failed to match. A nil Check
// means output was left after the checks ran out; a nil Line means checks
// were left after the output ran out. They are never both nil.
type Mismatch struct {
	Line  *Line
	Check *Check

	// Lines and Checks are the items the matcher consumed, in order.
	Lines  []Line
	Checks []*Check

	// Steps aligns Lines with Checks for display. Checks more than a few
	// past the end of Lines are left out.
	Steps []Step
}

// Align matches output lines against checks in order. Blank lines that no
// check claims are skipped. It returns nil if every line and every check
// is accounted for.
func Align(lines []Line, checks []*Check) *Mismatch {
	var (
		used       []Line
		usedChecks []*Check
		first      *Mismatch
	)
	i, j := 0, 0
	for i < len(lines) && j < len(checks) {
		line, check := lines[i], checks[j]
		switch {
		case check.Match(line):
			used = append(used, line)
			usedChecks = append(usedChecks, check)
			i++
			j++
		case line.IsBlank():
			i++
		default:
			if first == nil {
				first = &Mismatch{Line: &lines[i], Check: check}
			}
			used = append(used, line)
			usedChecks = append(usedChecks, check)
			i++
			j++
		}
	}

	// Remaining blank lines never need a check.
	for i < len(lines) && lines[i].IsBlank() {
		i++
	}
	leftover := i
	for ; i < len(lines); i++ {
		if !lines[i].IsBlank() {
			used = append(used, lines[i])
		}
	}
	usedChecks = append(usedChecks, checks[j:]...)

	switch {
	case first != nil:
	case leftover < len(lines):
		first = &Mismatch{Line: &lines[leftover]}
	case j < len(checks):
		first = &Mismatch{Check: checks[j]}
	default:
		return nil
	}
	first.Lines = used
	first.Checks = usedChecks
	first.Steps = alignSteps(used, displayChecks(used, usedChecks))
	return first
}

// maxExtraChecks bounds how many checks beyond the output length are
// aligned for display.
const maxExtraChecks = 5

// displayChecks trims checks trailing far past the end of the output.
func displayChecks(lines []Line, checks []*Check) []*Check {
	if limit := len(lines) + maxExtraChecks; len(checks) > limit {
		return checks[:limit]
	}
	return checks
}

// alignSteps computes a longest common subsequence of lines and checks,
// where a line and a check are common if the check matches the line. The
// gaps between common pairs are zipped into replace rows, and whatever is
// left over on either side becomes an extra row.
func alignSteps(lines []Line, checks []*Check) []Step {
	n, m := len(lines), len(checks)
	match := make([][]bool, n)
	for a := range lines {
		match[a] = make([]bool, m)
		for b, c := range checks {
			match[a][b] = c.Match(lines[a])
		}
	}

	// lcs[a][b] is the LCS length of lines[a:] and checks[b:].
	lcs := make([][]int, n+1)
	for a := range lcs {
		lcs[a] = make([]int, m+1)
	}
	for a := n - 1; a >= 0; a-- {
		for b := m - 1; b >= 0; b-- {
			switch {
			case match[a][b]:
				lcs[a][b] = lcs[a+1][b+1] + 1
			case lcs[a+1][b] >= lcs[a][b+1]:
				lcs[a][b] = lcs[a+1][b]
			default:
				lcs[a][b] = lcs[a][b+1]
			}
		}
	}

	var steps []Step
	gap := func(a0, a1, b0, b1 int) {
		for a0 < a1 && b0 < b1 {
			steps = append(steps, Step{Line: &lines[a0], Check: checks[b0], Relation: RelReplace})
			a0++
			b0++
		}
		for ; a0 < a1; a0++ {
			steps = append(steps, Step{Line: &lines[a0], Relation: RelExtraActual})
		}
		for ; b0 < b1; b0++ {
			steps = append(steps, Step{Check: checks[b0], Relation: RelExtraExpected})
		}
	}

	a, b := 0, 0
	ga, gb := 0, 0
	for a < n && b < m {
		switch {
		case match[a][b]:
			gap(ga, a, gb, b)
			steps = append(steps, Step{Line: &lines[a], Check: checks[b], Relation: RelEqual})
			a++
			b++
			ga, gb = a, b
		case lcs[a+1][b] >= lcs[a][b+1]:
			a++
		default:
			b++
		}
	}
	gap(ga, n, gb, m)
	return steps
}
