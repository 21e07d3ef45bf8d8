package leveldb_test

import (
	"encoding/binary"
	"testing"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/storage/leveldb"
	"github.com/holiman/uint256"
	goleveldb "github.com/syndtr/goleveldb/leveldb"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func blocks(n int) []database.Block {
	chain := make([]database.Block, n)

	prev := database.ZeroHash
	for i := range chain {
		chain[i] = database.Block{
			Prev: prev,
			Time: *uint256.NewInt(uint64(i + 1)),
		}
		chain[i].Body[0] = byte(i)
		prev = chain[i].Hash()
	}

	return chain
}

func Test_ReadWrite(t *testing.T) {
	t.Log("Given the need to store the canonical chain.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen writing blocks in index order.", testID)
		{
			store, err := leveldb.New(t.TempDir())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open storage: %v", failed, testID, err)
			}
			defer store.Close()

			chain := blocks(5)
			for i, block := range chain {
				if err := store.Write(uint64(i), block); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to write block %d: %v", failed, testID, i, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to write blocks.", success, testID)

			var got []database.Block
			iter := store.ForEach()
			defer iter.Release()
			for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to read block: %v", failed, testID, err)
				}
				got = append(got, block)
			}

			if len(got) != len(chain) {
				t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, len(got))
				t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, len(chain))
				t.Fatalf("\t%s\tTest %d:\tShould read back every block.", failed, testID)
			}

			for i := range chain {
				if got[i].Hash() != chain[i].Hash() {
					t.Fatalf("\t%s\tTest %d:\tShould read back block %d in order.", failed, testID, i)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould read back every block in index order.", success, testID)

			replaced := blocks(2)[1]
			replaced.Body[1] = 0xff
			if err := store.Write(1, replaced); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to replace a block: %v", failed, testID, err)
			}

			block, err := store.GetBlock(1)
			if err != nil || block.Hash() != replaced.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould read back the replaced block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to replace a block.", success, testID)

			if err := store.Reset(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reset: %v", failed, testID, err)
			}

			iter = store.ForEach()
			if _, err := iter.Next(); err == nil || !iter.Done() {
				t.Fatalf("\t%s\tTest %d:\tShould have no blocks after a reset.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have no blocks after a reset.", success, testID)
		}
	}
}

func Test_DamagedRecord(t *testing.T) {
	t.Log("Given the need to read past a damaged block record.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a record in the middle of the chain does not decode.", testID)
		{
			path := t.TempDir()

			store, err := leveldb.New(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open storage: %v", failed, testID, err)
			}

			chain := blocks(3)
			for i, block := range chain {
				if err := store.Write(uint64(i), block); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to write block %d: %v", failed, testID, i, err)
				}
			}
			store.Close()

			db, err := goleveldb.OpenFile(path, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open the raw database: %v", failed, testID, err)
			}
			key := binary.BigEndian.AppendUint64([]byte("b/"), 1)
			if err := db.Put(key, []byte{0x01, 0x02, 0x03}, nil); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to damage the record: %v", failed, testID, err)
			}
			db.Close()

			store, err = leveldb.New(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reopen storage: %v", failed, testID, err)
			}
			defer store.Close()

			var got []database.Block
			var errs int
			iter := store.ForEach()
			for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
				if err != nil {
					errs++
					continue
				}
				got = append(got, block)
			}
			iter.Release()

			if errs != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould report the damaged record once, got %d.", failed, testID, errs)
			}
			t.Logf("\t%s\tTest %d:\tShould report the damaged record once.", success, testID)

			if len(got) != 2 || got[0].Hash() != chain[0].Hash() || got[1].Hash() != chain[2].Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould read the blocks on both sides of it, got %d.", failed, testID, len(got))
			}
			t.Logf("\t%s\tTest %d:\tShould read the blocks on both sides of it.", success, testID)

			iter = store.ForEach()
			if _, err := iter.Next(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould read the first block: %v", failed, testID, err)
			}
			if _, err := iter.Next(); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail on the damaged record.", failed, testID)
			}
			iter.Release()
			iter.Release()

			if !iter.Done() {
				t.Fatalf("\t%s\tTest %d:\tShould end an iteration released early.", failed, testID)
			}
			if _, err := iter.Next(); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not read after a release.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould end an iteration released early.", success, testID)
		}
	}
}

func Test_Receipts(t *testing.T) {
	t.Log("Given the need to remember how blocks were mined.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen writing a receipt.", testID)
		{
			store, err := leveldb.New(t.TempDir())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open storage: %v", failed, testID, err)
			}
			defer store.Close()

			hash := blocks(1)[0].Hash()
			const rand = 0x0123456789abcdef

			if err := store.WriteReceipt(hash, rand); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to write a receipt: %v", failed, testID, err)
			}

			got, err := store.GetReceipt(hash)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read a receipt: %v", failed, testID, err)
			}

			if got != rand {
				t.Logf("\t%s\tTest %d:\tgot: %x", failed, testID, got)
				t.Logf("\t%s\tTest %d:\texp: %x", failed, testID, uint64(rand))
				t.Fatalf("\t%s\tTest %d:\tShould read back the same receipt.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould read back the same receipt.", success, testID)

			if _, err := store.GetReceipt(database.ZeroHash); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail for an unknown block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail for an unknown block.", success, testID)
		}
	}
}
