// Package protocol implements the RESP2 wire format of the Redis
// Serialization Protocol: decoding a byte stream into frames and encoding
// reply frames back into bytes.
//
// Decoding is split in two layers. Parse is a pure function over a byte
// slice that either returns one complete frame, ErrTruncated when more bytes
// are needed, or a protocol error. Decoder wraps it with an append-only
// receive buffer that is only shortened after a complete frame was parsed,
// so it can be fed arbitrarily sized chunks from a socket:
//
//	dec := protocol.NewDecoder(protocol.Limits{})
//	for {
//		if _, err := dec.Fill(conn); err != nil {
//			return err
//		}
//		for {
//			frame, ok, err := dec.Decode()
//			if err != nil {
//				return err // protocol violation, close the connection
//			}
//			if !ok {
//				break // wait for more bytes
//			}
//			// handle frame
//		}
//	}
//
// Reader does the same for any io.Reader with a blocking ReadFrame call.
//
// The package supports the RESP2 types:
//   - Simple Strings
//   - Errors
//   - Integers (signed 64-bit)
//   - Bulk Strings
//   - Arrays
//   - Null bulk strings and null arrays
package protocol
