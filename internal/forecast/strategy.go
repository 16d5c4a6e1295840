package forecast

// Strategy is one step of the resolution policy.
type Strategy interface {
	Name() Source
	Lookup(s *Snapshot, symbol string) (Pair, bool)
}

// DefaultPolicy tries the symbol's own pair, then the generic pair.
func DefaultPolicy() []Strategy {
	return []Strategy{SpecificStrategy{}, GenericStrategy{}}
}

// SpecificStrategy matches a pair trained for the symbol itself.
type SpecificStrategy struct{}

func (SpecificStrategy) Name() Source { return SourceSpecific }

func (SpecificStrategy) Lookup(s *Snapshot, symbol string) (Pair, bool) {
	if symbol == "" {
		return Pair{}, false
	}
	m, okm := s.models[symbol]
	sc, oks := s.scalers[symbol]
	if !okm || !oks {
		return Pair{}, false
	}
	return Pair{Symbol: symbol, Source: SourceSpecific, Model: m, Scaler: sc}, true
}

// GenericStrategy falls back to the pair trained across all symbols.
type GenericStrategy struct{}

func (GenericStrategy) Name() Source { return SourceGeneric }

func (GenericStrategy) Lookup(s *Snapshot, symbol string) (Pair, bool) {
	if s.generic == nil {
		return Pair{}, false
	}
	p := *s.generic
	p.Symbol = symbol
	return p, true
}
