package must

// NilErr panics on err. It is for errors that can only come from a
// programming or configuration mistake already rejected at startup.
func NilErr(err error) {
	if nil != err {
		panic("expected nil error, got: " + err.Error())
	}
}

// Value returns v, panicking like NilErr when err is set.
func Value[T any](v T, err error) T {
	NilErr(err)
	return v
}
