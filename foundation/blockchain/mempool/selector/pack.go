package selector

import "github.com/ardanlabs/ubilog/foundation/blockchain/database"

// packSelect writes slices in order, skipping any slice that does not fit
// whole so smaller slices further down can still use the space.
var packSelect = func(slices []database.Slice, body *database.Body) []int {
	bw := bodyWriter{body: body}

	var used []int
	for i, s := range slices {
		if s.Data.Len() > bw.free() {
			continue
		}

		bw.write(s)
		used = append(used, i)
	}

	return used
}
