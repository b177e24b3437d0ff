// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package catalog

import (
	"fmt"
	"time"

	"github.com/jessielw/tmdb-mirror/internal/database"
)

// RowBatch is a set of rows bound for one destination table. Columns match
// the table descriptor's insert columns; the loader adds the staging prefix
// when building a sweep generation.
type RowBatch struct {
	Table   string
	Columns []string
	Rows    [][]any
}

// builder accumulates row batches for one record, deduplicating dimension
// and association rows within the record.
type builder struct {
	batches map[string]*RowBatch
	order   []string
	seen    map[string]struct{}
}

func newBuilder() *builder {
	return &builder{
		batches: make(map[string]*RowBatch),
		seen:    make(map[string]struct{}),
	}
}

// add appends a row for table. A non-empty dedupeKey collapses repeats of
// the same dimension or association within this record.
func (b *builder) add(table string, dedupeKey string, row ...any) {
	if dedupeKey != "" {
		key := table + "\x00" + dedupeKey
		if _, dup := b.seen[key]; dup {
			return
		}
		b.seen[key] = struct{}{}
	}

	batch, ok := b.batches[table]
	if !ok {
		desc, found := database.TableByName(table)
		if !found {
			panic(fmt.Sprintf("catalog: unknown table %s", table))
		}
		batch = &RowBatch{Table: table, Columns: desc.ColumnNames()}
		b.batches[table] = batch
		b.order = append(b.order, table)
	}
	batch.Rows = append(batch.Rows, row)
}

func (b *builder) result() []RowBatch {
	out := make([]RowBatch, 0, len(b.order))
	for _, table := range b.order {
		out = append(out, *b.batches[table])
	}
	return out
}

// NormalizeMovie flattens one movie record into row batches. Dimension rows
// are emitted before the root, the root before children and associations,
// matching the loader's flush ranks.
func NormalizeMovie(m *Movie) []RowBatch {
	b := newBuilder()
	id := m.ID

	coll := m.BelongsToCollection
	if coll.ID != nil && coll.Name != nil {
		b.add("movie_collections", i64key(*coll.ID),
			*coll.ID, opt(coll.Name), opt(coll.PosterPath), opt(coll.BackdropPath))
	}

	for _, g := range m.Genres {
		b.add("movie_genres", i64key(g.ID), g.ID, opt(g.Name))
		b.add("movie_genres_assoc", i64key(g.ID), id, g.ID)
	}
	for _, c := range m.ProductionCompanies {
		b.add("movie_production_companies", i64key(c.ID),
			c.ID, opt(c.Name), opt(c.OriginCountry), opt(c.LogoPath))
		b.add("movie_companies_assoc", i64key(c.ID), id, c.ID)
	}
	for _, c := range m.ProductionCountries {
		b.add("movie_production_countries", c.ISO31661, c.ISO31661, opt(c.Name))
		b.add("movie_countries_assoc", c.ISO31661, id, c.ISO31661)
	}
	for _, l := range m.SpokenLanguages {
		b.add("movie_spoken_languages", l.ISO6391, l.ISO6391, opt(l.EnglishName), opt(l.Name))
		b.add("movie_languages_assoc", l.ISO6391, id, l.ISO6391)
	}
	if m.Credits != nil {
		for _, cm := range m.Credits.Cast {
			b.add("movie_cast_members", i64key(cm.ID),
				cm.ID, opt(cm.Adult), opt(cm.Gender), opt(cm.CastID), opt(cm.Name),
				opt(cm.OriginalName), opt(cm.KnownForDepartment), opt(cm.Popularity),
				opt(cm.ProfilePath), opt(cm.Character), opt(cm.Order))
			b.add("movie_cast_assoc", i64key(cm.ID), id, cm.ID)
		}
	}
	for _, k := range m.Keywords.All() {
		b.add("movie_keywords", i64key(k.ID), k.ID, opt(k.Name))
		b.add("movie_keywords_assoc", i64key(k.ID), id, k.ID)
	}

	b.add("movie", "",
		id, opt(m.BackdropPath), opt(m.Budget), opt(m.Homepage), opt(m.IMDbID),
		firstOrNil(m.OriginCountry), opt(m.OriginalLanguage), opt(m.OriginalTitle),
		opt(m.Overview), opt(m.Popularity), opt(m.PosterPath), date(m.ReleaseDate),
		opt(m.Revenue), opt(m.Runtime), opt(m.Status), opt(m.Tagline), opt(m.Title),
		opt(m.Video), opt(m.VoteAverage), opt(m.VoteCount), optID(coll.ID))

	// Exactly one external-ids row per root; absent sub-response still
	// yields an all-NULL row.
	ext := m.ExternalIDs
	if ext == nil {
		ext = &ExternalIDs{}
	}
	b.add("movie_external_ids", "",
		id, opt(ext.IMDbID), opt(ext.WikidataID), opt(ext.FacebookID),
		opt(ext.InstagramID), opt(ext.TwitterID))

	for _, alt := range m.AlternativeTitles.All() {
		b.add("movie_alternative_titles", "",
			opt(alt.ISO31661), opt(alt.Title), opt(alt.Type), id)
	}
	if m.ReleaseDates != nil {
		// Every entry is kept; one country ships several releases on the
		// same date differing only in type (theatrical, digital, ...).
		for _, country := range m.ReleaseDates.Results {
			for _, entry := range country.ReleaseDates {
				b.add("movie_release_dates", "",
					opt(country.ISO31661), emptyToNil(entry.Certification),
					datetime(entry.ReleaseDate), opt(entry.Type), opt(entry.Note), id)
			}
		}
	}
	if m.Videos != nil {
		for _, v := range m.Videos.Results {
			b.add("movie_videos", v.ID,
				v.ID, opt(v.ISO6391), opt(v.ISO31661), opt(v.Name), opt(v.Key),
				opt(v.Site), opt(v.Size), opt(v.Type), opt(v.Official),
				datetime(v.PublishedAt), id)
		}
	}

	return b.result()
}

// NormalizeSeries flattens one series record into row batches.
func NormalizeSeries(s *Series) []RowBatch {
	b := newBuilder()
	id := s.ID

	for _, c := range s.CreatedBy {
		b.add("series_created_by", i64key(c.ID),
			c.ID, opt(c.CreditID), opt(c.Name), opt(c.OriginalName), opt(c.Gender), opt(c.ProfilePath))
		b.add("series_created_by_assoc", i64key(c.ID), id, c.ID)
	}
	for _, g := range s.Genres {
		b.add("series_genres", i64key(g.ID), g.ID, opt(g.Name))
		b.add("series_genres_assoc", i64key(g.ID), id, g.ID)
	}
	for _, n := range s.Networks {
		b.add("series_networks", i64key(n.ID),
			n.ID, opt(n.LogoPath), opt(n.Name), opt(n.OriginCountry))
		b.add("series_networks_assoc", i64key(n.ID), id, n.ID)
	}
	for _, c := range s.ProductionCompanies {
		b.add("series_production_companies", i64key(c.ID),
			c.ID, opt(c.Name), opt(c.OriginCountry), opt(c.LogoPath))
		b.add("series_companies_assoc", i64key(c.ID), id, c.ID)
	}
	for _, c := range s.ProductionCountries {
		b.add("series_production_countries", c.ISO31661, c.ISO31661, opt(c.Name))
		b.add("series_countries_assoc", c.ISO31661, id, c.ISO31661)
	}
	for _, l := range s.SpokenLanguages {
		b.add("series_spoken_languages", l.ISO6391, l.ISO6391, opt(l.EnglishName), opt(l.Name))
		b.add("series_languages_assoc", l.ISO6391, id, l.ISO6391)
	}
	if s.Credits != nil {
		for _, cm := range s.Credits.Cast {
			b.add("series_cast_members", i64key(cm.ID),
				cm.ID, opt(cm.Adult), opt(cm.Gender), opt(cm.CastID), opt(cm.Name),
				opt(cm.OriginalName), opt(cm.KnownForDepartment), opt(cm.Popularity),
				opt(cm.ProfilePath), opt(cm.Character), opt(cm.Order))
			b.add("series_cast_assoc", i64key(cm.ID), id, cm.ID)
		}
	}
	for _, k := range s.Keywords.All() {
		b.add("series_keywords", i64key(k.ID), k.ID, opt(k.Name))
		b.add("series_keywords_assoc", i64key(k.ID), id, k.ID)
	}

	var lastEpID, nextEpID any
	if ep := s.LastEpisodeToAir; ep != nil {
		b.add("series_last_episode_to_air", i64key(ep.ID), episodeRow(ep)...)
		lastEpID = ep.ID
	}
	if ep := s.NextEpisodeToAir; ep != nil {
		b.add("series_next_episode_to_air", i64key(ep.ID), episodeRow(ep)...)
		nextEpID = ep.ID
	}

	// The series payload carries no top-level imdb_id; it comes from the
	// appended external_ids.
	var imdbID *string
	if s.ExternalIDs != nil {
		imdbID = s.ExternalIDs.IMDbID
	}

	b.add("series", "",
		id, opt(s.BackdropPath), date(s.FirstAirDate), opt(s.Homepage), opt(imdbID),
		opt(s.InProduction), date(s.LastAirDate), opt(s.Name), opt(s.NumberOfEpisodes),
		opt(s.NumberOfSeasons), firstOrNil(s.OriginCountry), opt(s.OriginalLanguage),
		opt(s.OriginalName), opt(s.Overview), opt(s.Popularity), opt(s.PosterPath),
		opt(s.Status), opt(s.Tagline), opt(s.Type), opt(s.VoteAverage), opt(s.VoteCount),
		lastEpID, nextEpID)

	ext := s.ExternalIDs
	if ext == nil {
		ext = &ExternalIDs{}
	}
	b.add("series_external_ids", "",
		id, opt(ext.IMDbID), opt(ext.WikidataID), opt(ext.FacebookID),
		opt(ext.InstagramID), opt(ext.TwitterID))

	for _, season := range s.Seasons {
		b.add("series_seasons", i64key(season.ID),
			season.ID, date(season.AirDate), opt(season.EpisodeCount), opt(season.Name),
			opt(season.Overview), opt(season.PosterPath), opt(season.SeasonNumber),
			opt(season.VoteAverage), id)
	}
	for _, alt := range s.AlternativeTitles.All() {
		b.add("series_alternative_titles", "",
			opt(alt.ISO31661), opt(alt.Title), opt(alt.Type), id)
	}
	if s.Videos != nil {
		for _, v := range s.Videos.Results {
			b.add("series_videos", v.ID,
				v.ID, opt(v.ISO6391), opt(v.ISO31661), opt(v.Name), opt(v.Key),
				opt(v.Site), opt(v.Size), opt(v.Type), opt(v.Official),
				datetime(v.PublishedAt), id)
		}
	}

	return b.result()
}

func episodeRow(ep *Episode) []any {
	return []any{
		ep.ID, opt(ep.Name), opt(ep.Overview), opt(ep.VoteAverage), opt(ep.VoteCount),
		date(ep.AirDate), opt(ep.EpisodeNumber), opt(ep.EpisodeType),
		opt(ep.ProductionCode), opt(ep.Runtime), opt(ep.SeasonNumber), opt(ep.ShowID),
		opt(ep.StillPath),
	}
}

// opt converts a pointer field into a SQL value: nil stays NULL.
func opt[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// optID keeps nullable FK columns NULL when no reference exists.
func optID(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// emptyToNil maps both nil and "" to NULL; the upstream sends empty
// certifications rather than omitting them.
func emptyToNil(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

// firstOrNil takes the first entry of an origin_country list.
func firstOrNil(values []string) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

// date parses an upstream YYYY-MM-DD value, mapping empty or malformed
// values to NULL.
func date(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", *p)
	if err != nil {
		return nil
	}
	return t
}

// datetime parses an upstream RFC 3339 timestamp, mapping empty or
// malformed values to NULL.
func datetime(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *p)
	if err != nil {
		return nil
	}
	return t
}

func i64key(id int64) string {
	return fmt.Sprintf("%d", id)
}
