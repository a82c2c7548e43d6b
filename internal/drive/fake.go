package drive

// FakeDriver records issued commands for test assertions.
type FakeDriver struct {
	// Commands contains every command that was issued successfully.
	Commands []Command

	// FailOn, if set, makes the matching command kind return Err.
	FailOn map[Kind]error

	// FailCount limits how many times FailOn errors fire; 0 means always.
	FailCount int
	failures  int

	// OnCommand, if set, is called after each recorded command.
	OnCommand func(Command)

	// Cleanups counts Cleanup calls.
	Cleanups int
}

// NewFakeDriver creates a FakeDriver for testing.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

func (f *FakeDriver) issue(c Command) error {
	if err, ok := f.FailOn[c.Kind]; ok && err != nil {
		if f.FailCount == 0 || f.failures < f.FailCount {
			f.failures++
			return err
		}
	}
	f.Commands = append(f.Commands, c)
	if f.OnCommand != nil {
		f.OnCommand(c)
	}
	return nil
}

func (f *FakeDriver) Forward(speed float64) error  { return f.issue(ForwardAt(speed)) }
func (f *FakeDriver) Backward(speed float64) error { return f.issue(BackwardAt(speed)) }
func (f *FakeDriver) Left(speed float64) error     { return f.issue(TurnLeftAt(speed)) }
func (f *FakeDriver) Right(speed float64) error    { return f.issue(TurnRightAt(speed)) }
func (f *FakeDriver) Stop() error                  { return f.issue(Halt()) }

// Cleanup counts the call. It never fails.
func (f *FakeDriver) Cleanup() error {
	f.Cleanups++
	return nil
}

// Reset clears recorded commands and failures.
func (f *FakeDriver) Reset() {
	f.Commands = nil
	f.FailOn = nil
	f.FailCount = 0
	f.failures = 0
	f.Cleanups = 0
}
