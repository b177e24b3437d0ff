// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package catalog

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func batchFor(t *testing.T, batches []RowBatch, table string) *RowBatch {
	t.Helper()
	for i := range batches {
		if batches[i].Table == table {
			return &batches[i]
		}
	}
	return nil
}

const matrixJSON = `{
	"id": 603,
	"imdb_id": "tt0133093",
	"title": "The Matrix",
	"original_title": "The Matrix",
	"release_date": "1999-03-30",
	"runtime": 136,
	"budget": 63000000,
	"origin_country": ["US"],
	"belongs_to_collection": {"id": 2344, "name": "The Matrix Collection", "poster_path": "/p.jpg", "backdrop_path": null},
	"genres": [{"id": 28, "name": "Action"}, {"id": 878, "name": "Science Fiction"}],
	"production_companies": [{"id": 79, "name": "Village Roadshow Pictures", "origin_country": "US", "logo_path": "/v.png"}],
	"production_countries": [{"iso_3166_1": "US", "name": "United States of America"}],
	"spoken_languages": [{"iso_639_1": "en", "english_name": "English", "name": "English"}],
	"credits": {"cast": [
		{"id": 6384, "name": "Keanu Reeves", "character": "Neo", "order": 0},
		{"id": 2975, "name": "Laurence Fishburne", "character": "Morpheus", "order": 1}
	]},
	"external_ids": {"imdb_id": "tt0133093", "wikidata_id": "Q83495"},
	"keywords": {"keywords": [{"id": 312, "name": "man vs machine"}]},
	"alternative_titles": {"titles": [{"iso_3166_1": "DE", "title": "Matrix", "type": ""}]},
	"release_dates": {"results": [
		{"iso_3166_1": "US", "release_dates": [
			{"certification": "R", "release_date": "1999-03-31T00:00:00.000Z", "type": 3, "note": ""},
			{"certification": "", "release_date": "1999-09-21T00:00:00.000Z", "type": 4}
		]}
	]},
	"videos": {"results": [
		{"id": "abc123", "key": "vKQi3bBA1y8", "site": "YouTube", "type": "Trailer", "official": true, "published_at": "2014-01-01T18:00:00.000Z"}
	]}
}`

func decodeMovie(t *testing.T, raw string) *Movie {
	t.Helper()
	var m Movie
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("failed to decode movie: %v", err)
	}
	return &m
}

func TestNormalizeMovie(t *testing.T) {
	batches := NormalizeMovie(decodeMovie(t, matrixJSON))

	root := batchFor(t, batches, "movie")
	if root == nil || len(root.Rows) != 1 {
		t.Fatal("expected exactly one movie root row")
	}
	row := root.Rows[0]
	if row[0] != int64(603) {
		t.Errorf("movie id = %v, want 603", row[0])
	}
	// release_date parses into a timestamp
	if _, ok := row[11].(time.Time); !ok {
		t.Errorf("release_date = %T, want time.Time", row[11])
	}
	// belongs_to_collection_id is the last column
	if row[len(row)-1] != int64(2344) {
		t.Errorf("belongs_to_collection_id = %v, want 2344", row[len(row)-1])
	}

	coll := batchFor(t, batches, "movie_collections")
	if coll == nil || len(coll.Rows) != 1 {
		t.Fatal("expected one collection dimension row")
	}

	genres := batchFor(t, batches, "movie_genres")
	assoc := batchFor(t, batches, "movie_genres_assoc")
	if genres == nil || len(genres.Rows) != 2 || assoc == nil || len(assoc.Rows) != 2 {
		t.Error("expected two genre rows with two associations")
	}

	ext := batchFor(t, batches, "movie_external_ids")
	if ext == nil || len(ext.Rows) != 1 {
		t.Fatal("expected exactly one external_ids row")
	}
	if ext.Rows[0][1] != "tt0133093" {
		t.Errorf("external imdb_id = %v, want tt0133093", ext.Rows[0][1])
	}
	if ext.Rows[0][3] != nil {
		t.Errorf("facebook_id = %v, want NULL", ext.Rows[0][3])
	}

	cast := batchFor(t, batches, "movie_cast_members")
	if cast == nil || len(cast.Rows) != 2 {
		t.Fatal("expected two cast rows")
	}
	// cast_order is the final cast column
	if got := cast.Rows[1][len(cast.Rows[1])-1]; got != int16(1) {
		t.Errorf("cast_order = %v, want 1", got)
	}

	rel := batchFor(t, batches, "movie_release_dates")
	if rel == nil || len(rel.Rows) != 2 {
		t.Fatal("expected two release date rows")
	}
	if rel.Rows[0][1] != "R" {
		t.Errorf("certification = %v, want R", rel.Rows[0][1])
	}
	// empty certification becomes NULL
	if rel.Rows[1][1] != nil {
		t.Errorf("empty certification = %v, want NULL", rel.Rows[1][1])
	}
}

func TestNormalizeMovieExternalIDsAlwaysPresent(t *testing.T) {
	batches := NormalizeMovie(decodeMovie(t, `{"id": 42}`))

	ext := batchFor(t, batches, "movie_external_ids")
	if ext == nil || len(ext.Rows) != 1 {
		t.Fatal("expected exactly one external_ids row for a bare record")
	}
	row := ext.Rows[0]
	if row[0] != int64(42) {
		t.Errorf("movie_id = %v, want 42", row[0])
	}
	for i := 1; i < len(row); i++ {
		if row[i] != nil {
			t.Errorf("external id column %d = %v, want NULL", i, row[i])
		}
	}
}

func TestNormalizeMovieDedupesRepeatedDimensions(t *testing.T) {
	m := decodeMovie(t, `{"id": 1, "genres": [{"id": 28, "name": "Action"}, {"id": 28, "name": "Action"}]}`)
	batches := NormalizeMovie(m)

	if genres := batchFor(t, batches, "movie_genres"); len(genres.Rows) != 1 {
		t.Errorf("genre rows = %d, want 1 after dedupe", len(genres.Rows))
	}
	if assoc := batchFor(t, batches, "movie_genres_assoc"); len(assoc.Rows) != 1 {
		t.Errorf("assoc rows = %d, want 1 after dedupe", len(assoc.Rows))
	}
}

func TestNormalizeMovieKeepsSameDayReleaseEntries(t *testing.T) {
	// Premiere and theatrical on the same day in the same country are
	// distinct entries and must both survive.
	raw := `{"id": 1, "release_dates": {"results": [
		{"iso_3166_1": "US", "release_dates": [
			{"certification": "R", "release_date": "1999-03-31T00:00:00.000Z", "type": 1},
			{"certification": "R", "release_date": "1999-03-31T00:00:00.000Z", "type": 3, "note": "wide"}
		]}
	]}}`
	batches := NormalizeMovie(decodeMovie(t, raw))

	rel := batchFor(t, batches, "movie_release_dates")
	if rel == nil || len(rel.Rows) != 2 {
		t.Fatalf("release date rows = %d, want 2", len(rel.Rows))
	}
	if rel.Rows[0][3] == rel.Rows[1][3] {
		t.Errorf("release types collapsed: %v and %v", rel.Rows[0][3], rel.Rows[1][3])
	}
}

func TestCollectionRefShapes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantID  any
		wantDim bool
	}{
		{"null", `{"id": 1, "belongs_to_collection": null}`, nil, false},
		{"absent", `{"id": 1}`, nil, false},
		{"object", `{"id": 1, "belongs_to_collection": {"id": 9, "name": "X"}}`, int64(9), true},
		{"bare id", `{"id": 1, "belongs_to_collection": 9}`, int64(9), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := NormalizeMovie(decodeMovie(t, tt.raw))
			root := batchFor(t, batches, "movie")
			got := root.Rows[0][len(root.Rows[0])-1]
			if got != tt.wantID {
				t.Errorf("belongs_to_collection_id = %v, want %v", got, tt.wantID)
			}
			dim := batchFor(t, batches, "movie_collections")
			if tt.wantDim && (dim == nil || len(dim.Rows) != 1) {
				t.Error("expected a collection dimension row")
			}
			if !tt.wantDim && dim != nil {
				t.Error("unexpected collection dimension row")
			}
		})
	}
}

func TestNormalizeSeries(t *testing.T) {
	raw := `{
		"id": 1399,
		"name": "Game of Thrones",
		"first_air_date": "2011-04-17",
		"in_production": false,
		"number_of_seasons": 8,
		"origin_country": ["US", "GB"],
		"created_by": [{"id": 9813, "name": "David Benioff", "credit_id": "abc"}],
		"genres": [{"id": 10765, "name": "Sci-Fi & Fantasy"}],
		"networks": [{"id": 49, "name": "HBO", "origin_country": "US"}],
		"seasons": [{"id": 3624, "season_number": 1, "episode_count": 10, "air_date": "2011-04-17"}],
		"last_episode_to_air": {"id": 1551830, "name": "The Iron Throne", "season_number": 8, "episode_number": 6},
		"external_ids": {"imdb_id": "tt0944947"},
		"keywords": {"results": [{"id": 6091, "name": "war"}]}
	}`
	var s Series
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("failed to decode series: %v", err)
	}

	batches := NormalizeSeries(&s)

	root := batchFor(t, batches, "series")
	if root == nil || len(root.Rows) != 1 {
		t.Fatal("expected exactly one series root row")
	}
	row := root.Rows[0]
	if row[0] != int64(1399) {
		t.Errorf("series id = %v, want 1399", row[0])
	}
	// imdb_id comes from external_ids
	if row[4] != "tt0944947" {
		t.Errorf("imdb_id = %v, want tt0944947", row[4])
	}
	// origin_country keeps only the first entry
	if row[10] != "US" {
		t.Errorf("origin_country = %v, want US", row[10])
	}
	// last_episode_to_air_id set, next NULL
	if row[len(row)-2] != int64(1551830) {
		t.Errorf("last_episode_to_air_id = %v, want 1551830", row[len(row)-2])
	}
	if row[len(row)-1] != nil {
		t.Errorf("next_episode_to_air_id = %v, want NULL", row[len(row)-1])
	}

	if ep := batchFor(t, batches, "series_last_episode_to_air"); ep == nil || len(ep.Rows) != 1 {
		t.Error("expected one last_episode_to_air row")
	}
	if batchFor(t, batches, "series_next_episode_to_air") != nil {
		t.Error("unexpected next_episode_to_air batch")
	}
	if kw := batchFor(t, batches, "series_keywords"); kw == nil || len(kw.Rows) != 1 {
		t.Error("expected keywords from the results wrapper")
	}
	if seasons := batchFor(t, batches, "series_seasons"); seasons == nil || len(seasons.Rows) != 1 {
		t.Error("expected one season row")
	}
	if created := batchFor(t, batches, "series_created_by_assoc"); created == nil || len(created.Rows) != 1 {
		t.Error("expected one created_by association")
	}
}

func TestDateHelpers(t *testing.T) {
	empty := ""
	bad := "not-a-date"
	good := "2024-05-01"

	if date(nil) != nil || date(&empty) != nil || date(&bad) != nil {
		t.Error("invalid dates should map to NULL")
	}
	if _, ok := date(&good).(time.Time); !ok {
		t.Error("valid date should parse")
	}

	ts := "2014-01-01T18:00:00.000Z"
	if _, ok := datetime(&ts).(time.Time); !ok {
		t.Error("valid timestamp should parse")
	}
}
