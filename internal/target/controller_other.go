//go:build !windows

package target

type unsupportedController struct{}

// NewController returns a controller that fails every operation with ErrUnsupported
func NewController() Controller {
	return unsupportedController{}
}

func (unsupportedController) Launch(LaunchRequest) (*Process, error)       { return nil, ErrUnsupported }
func (unsupportedController) Modules(*Process) ([]string, error)           { return nil, ErrUnsupported }
func (unsupportedController) Alloc(*Process, uintptr) (uintptr, error)     { return 0, ErrUnsupported }
func (unsupportedController) Write(*Process, uintptr, []byte) (int, error) { return 0, ErrUnsupported }
func (unsupportedController) Free(*Process, uintptr) error                 { return ErrUnsupported }
func (unsupportedController) LoaderEntry(Charset) (uintptr, error)         { return 0, ErrUnsupported }
func (unsupportedController) Resume(*Process) error                        { return ErrUnsupported }
func (unsupportedController) Terminate(*Process, uint32) error             { return ErrUnsupported }
func (unsupportedController) Release(*Process) error                       { return nil }

func (unsupportedController) CreateThread(*Process, uintptr, uintptr) (Thread, error) {
	return nil, ErrUnsupported
}
