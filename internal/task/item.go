package task

// Item is a unit of work submitted to a Task. Key is the affinity key used by
// flow-hash dispatch (e.g. a 5-tuple or session id); Payload is opaque to the
// task machinery and only meaningful to Task.Process.
type Item struct {
	ID      string
	Key     []byte
	Payload any
}

// Result is what a worker produces after running Task.Process over an Item.
// It is handed to the sender goroutine and, from there, to every configured
// Reporter.
type Result struct {
	TaskID  string
	ItemID  string
	Payload any
	Err     error
}

// ItemContext is installed as an capture.AutoScoped point around every
// Item a worker processes, so that code invoked through capture.WrapCall on
// the sender goroutine — and any reporter it calls into — can recover which
// item a Result came from without threading it through every call.
type ItemContext struct {
	TaskID string
	ItemID string
}
