package deck

import "github.com/fslcore/fsl/internal/corecontext"

func errSyntax(msg string) error {
	return corecontext.New(corecontext.KindSyntax, msg)
}

func errConsistency(msg string) error {
	return corecontext.New(corecontext.KindConsistency, msg)
}

func errRange(msg string) error {
	return corecontext.New(corecontext.KindRange, msg)
}

func errType(msg string) error {
	return corecontext.New(corecontext.KindType, msg)
}

func errNotFound(msg string) error {
	return corecontext.New(corecontext.KindNotFound, msg)
}
