package dsl

// ArgConsumer is implemented by words that accept additional runtime
// arguments supplied to Fuse alongside the word list (e.g. a network
// word's multicast address and port). Words that only need their
// Go-constructor arguments do not implement this.
type ArgConsumer interface {
	// CanBind reports whether this word can consume exactly n leading
	// elements of whatever argument slice it is offered.
	CanBind(n int) bool
	// Bind applies the chosen prefix of arguments. Called only with an n
	// for which CanBind(n) returned true.
	Bind(args []any) error
}

// distributeArgs implements spec §4.1's "Argument distribution": for each
// word in declaration order, assign the largest prefix of the remaining
// arguments that the word accepts (longest-prefix-first, falling back to
// zero); if no word accepts the offered remainder, or arguments remain
// once every word has been tried, bind fails with DSLMappingError.
func distributeArgs(words []any, args []any) error {
	remaining := args
	for _, w := range words {
		consumer, ok := w.(ArgConsumer)
		if !ok {
			continue
		}
		assigned := false
		for n := len(remaining); n >= 0; n-- {
			if !consumer.CanBind(n) {
				continue
			}
			if err := consumer.Bind(remaining[:n:n]); err != nil {
				return err
			}
			remaining = remaining[n:]
			assigned = true
			break
		}
		if !assigned {
			return &DSLMappingError{Remaining: len(remaining)}
		}
	}
	if len(remaining) != 0 {
		return &DSLMappingError{Remaining: len(remaining)}
	}
	return nil
}
