package calendar

// Service bundles the resolver, locator and mutator that share one remote.
type Service struct {
	Resolver *Resolver
	Locator  *Locator
	Mutator  *Mutator
}

func NewService(remote Remote, settings Settings) *Service {
	return &Service{
		Resolver: NewResolver(remote, settings),
		Locator:  NewLocator(remote, settings),
		Mutator:  NewMutator(remote, settings),
	}
}
