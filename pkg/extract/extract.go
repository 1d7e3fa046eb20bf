package extract

// Extract pulls typed parameters out of check text. With a hint only the
// hint's matchers run; with TypeUnknown every type is tried in precedence
// order and the most complete result wins, ties going to the earlier type.
// Nothing found yields a placeholder-filled result with low confidence.
func Extract(text string, hint CheckType) ExtractedParameters {
	types := precedence
	hinted := hint != "" && hint != TypeUnknown
	if hinted {
		types = []CheckType{hint}
	}

	var (
		best     Variant
		bestMiss int
	)
	for _, t := range types {
		v := firstMatch(t, text)
		if v == nil {
			continue
		}
		miss := countPlaceholders(v)
		if best == nil || miss < bestMiss {
			best, bestMiss = v, miss
		}
		if bestMiss == 0 {
			break
		}
	}

	p := ExtractedParameters{Type: TypeUnknown, Variant: best}
	switch {
	case best != nil:
		p.Type = best.CheckType()
	case hinted:
		p.Type = hint
		p.Variant = emptyVariant(hint)
	}

	p.ConfigInputs = configInputs(text, p.Variant)
	if len(p.ConfigInputs) > 0 && p.Variant != nil {
		p.Variant = bindConfig(p.Variant, p.ConfigInputs[0])
	}
	p.Confidence, p.Placeholder = grade(p.Variant)
	return p
}

// firstMatch runs a type's matchers in order and returns the first hit.
func firstMatch(t CheckType, text string) Variant {
	for _, m := range matchers[t] {
		if v, ok := m(text); ok {
			return v
		}
	}
	return nil
}

func countPlaceholders(v Variant) int {
	n := 0
	for _, f := range v.Slots() {
		if f.Placeholder {
			n++
		}
	}
	return n
}

// grade returns the confidence and placeholder flag for a variant. Zero
// (optional, unmentioned) slots count toward neither side.
func grade(v Variant) (Confidence, bool) {
	if v == nil {
		return ConfidenceLow, true
	}
	var resolved, unresolved int
	for _, f := range v.Slots() {
		switch {
		case f.Placeholder:
			unresolved++
		case f.Resolved():
			resolved++
		}
	}
	switch {
	case unresolved == 0 && resolved > 0:
		return ConfidenceHigh, false
	case unresolved == 0:
		return ConfidenceLow, true
	case resolved > countFixed(v):
		return ConfidenceMedium, true
	default:
		return ConfidenceLow, true
	}
}

// countFixed is the number of slots a variant fills on its own regardless
// of the text, such as the mode comparison of a file permission.
func countFixed(v Variant) int {
	switch v.(type) {
	case FilePermission, Registry, Sysctl:
		return 1
	}
	return 0
}
