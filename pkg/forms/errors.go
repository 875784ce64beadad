package forms

import "errors"

// ErrAborted reports that the person filling the form interrupted the
// session (Ctrl+C or EOF). Nothing collected so far should be persisted.
var ErrAborted = errors.New("forms: session aborted")
