package coap

// Method is the request verb handed to the client's -m flag. Values outside the
// constants below are passed through unchanged.
type Method string

const (
	MethodGet    Method = "get"
	MethodPost   Method = "post"
	MethodPut    Method = "put"
	MethodDelete Method = "delete"
)

func (m Method) String() string {
	return string(m)
}
