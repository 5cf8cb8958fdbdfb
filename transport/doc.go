// Package transport owns the UDP socket of the protocol engine.
//
// A UDPTransport runs two loops. The writer drains a bounded queue of
// outbound datagrams, so producers block (Send) or fail fast (TrySend)
// when the socket cannot keep up. The reader polls the socket with a short
// deadline, copies every datagram and hands it to the handler given to
// Start.
//
//	tr, err := transport.Listen("0.0.0.0:9987", transport.Options{})
//	if err != nil {
//	    return err
//	}
//	tr.Start(func(addr net.Addr, data []byte) {
//	    // route data
//	})
//	defer tr.Close()
//
// Failures carry the operation and peer address in an *Error wrapping one
// of the sentinel errors, so callers test them with errors.Is.
package transport
