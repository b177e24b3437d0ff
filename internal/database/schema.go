// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package database

import (
	"fmt"
	"strings"
)

// Rank orders tables for bulk-load flushing: dimensions and roots must be
// on disk before the association rows that reference them.
type Rank int

const (
	RankDimension Rank = iota
	RankRoot
	RankChild
	RankAssociation
)

// StagingPrefix is prepended to table names during full-sweep builds.
const StagingPrefix = "staging_"

// OldSuffix marks the retained previous generation after a swap.
const OldSuffix = "_old"

// Column describes one column of a catalog table. Everything except primary
// key columns is nullable; upstream data is sparse and whole-record replace
// keeps partial updates out of the picture.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
}

// Table is an explicit descriptor for one catalog table: name, columns,
// composite primary key and flush rank. DDL and conflict targets are derived
// from it so the schema has a single source of truth.
type Table struct {
	Name    string
	Rank    Rank
	Columns []Column
}

func col(name, typ string) Column  { return Column{Name: name, Type: typ} }
func pkey(name, typ string) Column { return Column{Name: name, Type: typ, PrimaryKey: true} }

// PrimaryKey returns the names of the primary key columns in order.
func (t Table) PrimaryKey() []string {
	var keys []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// ColumnNames returns every column name in declaration order, excluding
// serial surrogate keys which the database assigns.
func (t Table) ColumnNames() []string {
	var names []string
	for _, c := range t.Columns {
		if c.Type == "BIGSERIAL" {
			continue
		}
		names = append(names, c.Name)
	}
	return names
}

// ConflictTarget returns the ON CONFLICT column list for DO NOTHING inserts,
// or "" for tables with only a serial surrogate key.
func (t Table) ConflictTarget() string {
	keys := t.PrimaryKey()
	if len(keys) == 1 {
		for _, c := range t.Columns {
			if c.PrimaryKey && c.Type == "BIGSERIAL" {
				return ""
			}
		}
	}
	return strings.Join(keys, ", ")
}

// CreateSQL renders the CREATE TABLE statement for this table under the
// given name prefix ("" for live, StagingPrefix for staging builds).
func (t Table) CreateSQL(prefix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s%s (\n", prefix, t.Name)
	for i, c := range t.Columns {
		fmt.Fprintf(&b, "\t%s %s", c.Name, c.Type)
		if i < len(t.Columns)-1 {
			b.WriteString(",\n")
		}
	}
	if keys := t.PrimaryKey(); len(keys) > 0 {
		fmt.Fprintf(&b, ",\n\tPRIMARY KEY (%s)", strings.Join(keys, ", "))
	}
	b.WriteString("\n)")
	return b.String()
}

// Family identifies one of the two record families.
type Family string

const (
	FamilyMovie  Family = "movie"
	FamilySeries Family = "series"
)

// Root returns the root table name for the family.
func (f Family) Root() string {
	return string(f)
}

// Tables returns every table of the family, dimensions first.
func (f Family) Tables() []Table {
	if f == FamilySeries {
		return seriesTables
	}
	return movieTables
}

var externalIDColumns = []string{"imdb_id", "wikidata_id", "facebook_id", "instagram_id", "twitter_id"}

var movieTables = []Table{
	{Name: "movie_collections", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("name", "TEXT"), col("poster_path", "TEXT"), col("backdrop_path", "TEXT"),
	}},
	{Name: "movie_genres", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("name", "TEXT"),
	}},
	{Name: "movie_production_companies", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("name", "TEXT"), col("origin_country", "TEXT"), col("logo_path", "TEXT"),
	}},
	{Name: "movie_production_countries", Rank: RankDimension, Columns: []Column{
		pkey("iso_3166_1", "TEXT"), col("name", "TEXT"),
	}},
	{Name: "movie_spoken_languages", Rank: RankDimension, Columns: []Column{
		pkey("iso_639_1", "TEXT"), col("english_name", "TEXT"), col("name", "TEXT"),
	}},
	{Name: "movie_cast_members", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("adult", "BOOLEAN"), col("gender", "SMALLINT"), col("cast_id", "BIGINT"),
		col("name", "TEXT"), col("original_name", "TEXT"), col("known_for_department", "TEXT"),
		col("popularity", "DOUBLE PRECISION"), col("profile_path", "TEXT"), col("character", "TEXT"),
		col("cast_order", "SMALLINT"),
	}},
	{Name: "movie_keywords", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("name", "TEXT"),
	}},
	{Name: "movie", Rank: RankRoot, Columns: []Column{
		pkey("id", "BIGINT"), col("backdrop_path", "TEXT"), col("budget", "BIGINT"), col("homepage", "TEXT"),
		col("imdb_id", "TEXT"), col("origin_country", "TEXT"), col("original_language", "TEXT"),
		col("original_title", "TEXT"), col("overview", "TEXT"), col("popularity", "DOUBLE PRECISION"),
		col("poster_path", "TEXT"), col("release_date", "TIMESTAMP"), col("revenue", "BIGINT"),
		col("runtime", "INTEGER"), col("status", "TEXT"), col("tagline", "TEXT"), col("title", "TEXT"),
		col("video", "BOOLEAN"), col("vote_average", "DOUBLE PRECISION"), col("vote_count", "BIGINT"),
		col("belongs_to_collection_id", "BIGINT"),
	}},
	{Name: "movie_external_ids", Rank: RankChild, Columns: []Column{
		pkey("movie_id", "BIGINT"), col("imdb_id", "TEXT"), col("wikidata_id", "TEXT"),
		col("facebook_id", "TEXT"), col("instagram_id", "TEXT"), col("twitter_id", "TEXT"),
	}},
	{Name: "movie_alternative_titles", Rank: RankChild, Columns: []Column{
		pkey("id", "BIGSERIAL"), col("iso_3166_1", "TEXT"), col("title", "TEXT"), col("type", "TEXT"),
		col("movie_id", "BIGINT"),
	}},
	{Name: "movie_release_dates", Rank: RankChild, Columns: []Column{
		pkey("id", "BIGSERIAL"), col("iso_3166_1", "TEXT"), col("certification", "TEXT"),
		col("release_date", "TIMESTAMP"), col("type", "INTEGER"), col("note", "TEXT"),
		col("movie_id", "BIGINT"),
	}},
	{Name: "movie_videos", Rank: RankChild, Columns: []Column{
		pkey("id", "TEXT"), col("iso_639_1", "TEXT"), col("iso_3166_1", "TEXT"), col("name", "TEXT"),
		col("key", "TEXT"), col("site", "TEXT"), col("size", "INTEGER"), col("type", "TEXT"),
		col("official", "BOOLEAN"), col("published_at", "TIMESTAMP"), col("movie_id", "BIGINT"),
	}},
	{Name: "movie_genres_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("movie_id", "BIGINT"), pkey("genre_id", "BIGINT"),
	}},
	{Name: "movie_companies_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("movie_id", "BIGINT"), pkey("company_id", "BIGINT"),
	}},
	{Name: "movie_countries_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("movie_id", "BIGINT"), pkey("country_id", "TEXT"),
	}},
	{Name: "movie_languages_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("movie_id", "BIGINT"), pkey("language_id", "TEXT"),
	}},
	{Name: "movie_cast_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("movie_id", "BIGINT"), pkey("cast_id", "BIGINT"),
	}},
	{Name: "movie_keywords_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("movie_id", "BIGINT"), pkey("id", "BIGINT"),
	}},
}

var seriesTables = []Table{
	{Name: "series_created_by", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("credit_id", "TEXT"), col("name", "TEXT"), col("original_name", "TEXT"),
		col("gender", "SMALLINT"), col("profile_path", "TEXT"),
	}},
	{Name: "series_genres", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("name", "TEXT"),
	}},
	{Name: "series_networks", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("logo_path", "TEXT"), col("name", "TEXT"), col("origin_country", "TEXT"),
	}},
	{Name: "series_production_companies", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("name", "TEXT"), col("origin_country", "TEXT"), col("logo_path", "TEXT"),
	}},
	{Name: "series_production_countries", Rank: RankDimension, Columns: []Column{
		pkey("iso_3166_1", "TEXT"), col("name", "TEXT"),
	}},
	{Name: "series_spoken_languages", Rank: RankDimension, Columns: []Column{
		pkey("iso_639_1", "TEXT"), col("english_name", "TEXT"), col("name", "TEXT"),
	}},
	{Name: "series_cast_members", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("adult", "BOOLEAN"), col("gender", "SMALLINT"), col("cast_id", "BIGINT"),
		col("name", "TEXT"), col("original_name", "TEXT"), col("known_for_department", "TEXT"),
		col("popularity", "DOUBLE PRECISION"), col("profile_path", "TEXT"), col("character", "TEXT"),
		col("cast_order", "SMALLINT"),
	}},
	{Name: "series_keywords", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("name", "TEXT"),
	}},
	{Name: "series_last_episode_to_air", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("name", "TEXT"), col("overview", "TEXT"),
		col("vote_average", "DOUBLE PRECISION"), col("vote_count", "BIGINT"), col("air_date", "TIMESTAMP"),
		col("episode_number", "INTEGER"), col("episode_type", "TEXT"), col("production_code", "TEXT"),
		col("runtime", "INTEGER"), col("season_number", "INTEGER"), col("show_id", "BIGINT"),
		col("still_path", "TEXT"),
	}},
	{Name: "series_next_episode_to_air", Rank: RankDimension, Columns: []Column{
		pkey("id", "BIGINT"), col("name", "TEXT"), col("overview", "TEXT"),
		col("vote_average", "DOUBLE PRECISION"), col("vote_count", "BIGINT"), col("air_date", "TIMESTAMP"),
		col("episode_number", "INTEGER"), col("episode_type", "TEXT"), col("production_code", "TEXT"),
		col("runtime", "INTEGER"), col("season_number", "INTEGER"), col("show_id", "BIGINT"),
		col("still_path", "TEXT"),
	}},
	{Name: "series", Rank: RankRoot, Columns: []Column{
		pkey("id", "BIGINT"), col("backdrop_path", "TEXT"), col("first_air_date", "TIMESTAMP"),
		col("homepage", "TEXT"), col("imdb_id", "TEXT"), col("in_production", "BOOLEAN"),
		col("last_air_date", "TIMESTAMP"), col("name", "TEXT"), col("number_of_episodes", "INTEGER"),
		col("number_of_seasons", "INTEGER"), col("origin_country", "TEXT"), col("original_language", "TEXT"),
		col("original_name", "TEXT"), col("overview", "TEXT"), col("popularity", "DOUBLE PRECISION"),
		col("poster_path", "TEXT"), col("status", "TEXT"), col("tagline", "TEXT"), col("type", "TEXT"),
		col("vote_average", "DOUBLE PRECISION"), col("vote_count", "BIGINT"),
		col("last_episode_to_air_id", "BIGINT"), col("next_episode_to_air_id", "BIGINT"),
	}},
	{Name: "series_seasons", Rank: RankChild, Columns: []Column{
		pkey("id", "BIGINT"), col("air_date", "TIMESTAMP"), col("episode_count", "INTEGER"),
		col("name", "TEXT"), col("overview", "TEXT"), col("poster_path", "TEXT"),
		col("season_number", "INTEGER"), col("vote_average", "DOUBLE PRECISION"), col("series_id", "BIGINT"),
	}},
	{Name: "series_alternative_titles", Rank: RankChild, Columns: []Column{
		pkey("id", "BIGSERIAL"), col("iso_3166_1", "TEXT"), col("title", "TEXT"), col("type", "TEXT"),
		col("series_id", "BIGINT"),
	}},
	{Name: "series_external_ids", Rank: RankChild, Columns: []Column{
		pkey("series_id", "BIGINT"), col("imdb_id", "TEXT"), col("wikidata_id", "TEXT"),
		col("facebook_id", "TEXT"), col("instagram_id", "TEXT"), col("twitter_id", "TEXT"),
	}},
	{Name: "series_videos", Rank: RankChild, Columns: []Column{
		pkey("id", "TEXT"), col("iso_639_1", "TEXT"), col("iso_3166_1", "TEXT"), col("name", "TEXT"),
		col("key", "TEXT"), col("site", "TEXT"), col("size", "INTEGER"), col("type", "TEXT"),
		col("official", "BOOLEAN"), col("published_at", "TIMESTAMP"), col("series_id", "BIGINT"),
	}},
	{Name: "series_created_by_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("series_id", "BIGINT"), pkey("created_by_id", "BIGINT"),
	}},
	{Name: "series_genres_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("series_id", "BIGINT"), pkey("genre_id", "BIGINT"),
	}},
	{Name: "series_networks_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("series_id", "BIGINT"), pkey("network_id", "BIGINT"),
	}},
	{Name: "series_companies_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("series_id", "BIGINT"), pkey("company_id", "BIGINT"),
	}},
	{Name: "series_countries_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("series_id", "BIGINT"), pkey("country_id", "TEXT"),
	}},
	{Name: "series_languages_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("series_id", "BIGINT"), pkey("language_id", "TEXT"),
	}},
	{Name: "series_cast_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("series_id", "BIGINT"), pkey("cast_id", "BIGINT"),
	}},
	{Name: "series_keywords_assoc", Rank: RankAssociation, Columns: []Column{
		pkey("series_id", "BIGINT"), pkey("id", "BIGINT"),
	}},
}

// tableIndex maps table name to descriptor across both families.
var tableIndex = func() map[string]Table {
	idx := make(map[string]Table, len(movieTables)+len(seriesTables))
	for _, t := range movieTables {
		idx[t.Name] = t
	}
	for _, t := range seriesTables {
		idx[t.Name] = t
	}
	return idx
}()

// TableByName looks up a table descriptor by its live (unprefixed) name.
func TableByName(name string) (Table, bool) {
	t, ok := tableIndex[name]
	return t, ok
}

// AllTables returns every catalog table across both families.
func AllTables() []Table {
	out := make([]Table, 0, len(movieTables)+len(seriesTables))
	out = append(out, movieTables...)
	out = append(out, seriesTables...)
	return out
}
