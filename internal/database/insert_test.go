// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package database

import "testing"

func TestRecordDeleteOrderClearsRootLast(t *testing.T) {
	for _, family := range []Family{FamilyMovie, FamilySeries} {
		order := recordDeleteOrder(family)
		if len(order) == 0 {
			t.Fatalf("%s: empty delete order", family)
		}
		last := order[len(order)-1]
		if last.Name != family.Root() || last.Rank != RankRoot {
			t.Errorf("%s: delete order ends with %s (rank %d), want root %s",
				family, last.Name, last.Rank, family.Root())
		}
	}
}

func TestRecordDeleteOrderCoversAllOwnedTables(t *testing.T) {
	for _, family := range []Family{FamilyMovie, FamilySeries} {
		cleared := make(map[string]bool)
		for _, tbl := range recordDeleteOrder(family) {
			if tbl.Rank == RankDimension {
				t.Errorf("%s: shared dimension %s must not be cleared per record", family, tbl.Name)
			}
			cleared[tbl.Name] = true
		}
		for _, tbl := range family.Tables() {
			owned := tbl.Rank == RankChild || tbl.Rank == RankAssociation || tbl.Name == family.Root()
			if owned && !cleared[tbl.Name] {
				t.Errorf("%s: owned table %s missing from record delete", family, tbl.Name)
			}
			if !owned && cleared[tbl.Name] && tbl.Name != family.Root() {
				t.Errorf("%s: table %s cleared but not owned by the root", family, tbl.Name)
			}
		}
	}
}
