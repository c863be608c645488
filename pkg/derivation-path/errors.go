package path

import (
	"fmt"
)

var (
	ErrMissingDerivationPath          = fmt.Errorf("missing derivation path")
	ErrRequiredAbsoluteDerivationPath = fmt.Errorf("path must be an absolute derivation starting with 'm/'")
	ErrMalformedDerivationPath        = fmt.Errorf("path must not start or end with a '/'")
	ErrInvalidPathStep                = fmt.Errorf("path step must be a decimal index")
)
