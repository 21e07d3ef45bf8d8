package selector

import "github.com/ardanlabs/ubilog/foundation/blockchain/database"

// workSelect writes slices in order until the body is full. The slice that
// crosses the end of the body is truncated and still consumed.
var workSelect = func(slices []database.Slice, body *database.Body) []int {
	bw := bodyWriter{body: body}

	var used []int
	for i, s := range slices {
		if bw.free() == 0 {
			break
		}

		bw.write(s)
		used = append(used, i)
	}

	return used
}
