package domain

// Method selects the lot-consumption order for a calculation run.
//
// Any value other than LIFO or HIFO keeps the chronological lot order, so
// unrecognized methods fall through to FIFO-equivalent behavior rather
// than being rejected.
type Method string

// Accounting method constants.
const (
	MethodFIFO Method = "FIFO"
	MethodLIFO Method = "LIFO"
	MethodHIFO Method = "HIFO"
)
