package highlight

// Evaluate runs msg through seq in order. Each result field is taken from the
// first matching check that supplies it; scanning stops once every field is
// populated.
func Evaluate(seq Sequence, msg *Message) (bool, Result) {
	var (
		matched bool
		result  Result
	)
	if msg == nil {
		return false, result
	}

	for _, check := range seq.checks {
		r, ok := check.Eval(msg)
		if !ok {
			continue
		}
		matched = true
		result.merge(r)
		if result.Full() {
			break
		}
	}
	return matched, result
}
