package helpers

// ConfigOption is one setting in a variadic option list, applied to a *T by ApplyOptions.
type ConfigOption[T any] interface {
	Configure(*T) error
}

// ApplyOptions configures target with each option in turn and stops at the first error. The
// separate U parameter lets callers declare their own named option type.
func ApplyOptions[T any, U ConfigOption[T]](target *T, options ...U) error {
	for _, o := range options {
		if err := o.Configure(target); err != nil {
			return err
		}
	}
	return nil
}
