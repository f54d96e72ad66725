// Package coap drives an external CoAP command-line client against a device.
//
// The package does not speak CoAP itself. [Tester] builds the argument vector
// for the client binary (libcoap's coap-client by default), runs it through a
// [command.Runner] and returns the measured latency together with whatever the
// client printed. Response codes and payloads are not interpreted; a failed
// request looks like any other output.
//
// Batch helpers fan a single request out over several paths ([Tester.TestPaths]),
// repeat it sequentially ([Tester.TestTimes]) or repeat it on a bounded worker
// pool ([Tester.TestTimesParallel]). All three return responses in submission
// order and abort on the first invocation fault.
package coap
