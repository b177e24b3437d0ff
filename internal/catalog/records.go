// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

// Package catalog holds the upstream record shapes and the normalizer that
// flattens one record into row batches keyed by destination table. Parsing
// is lenient: unknown fields are ignored and nulls map to nil pointers,
// which the normalizer turns into SQL NULLs.
package catalog

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Movie is one upstream movie record with its appended sub-responses
// (alternative_titles, credits, external_ids, keywords, release_dates,
// videos).
type Movie struct {
	ID               int64    `json:"id"`
	Adult            *bool    `json:"adult"`
	BackdropPath     *string  `json:"backdrop_path"`
	Budget           *int64   `json:"budget"`
	Homepage         *string  `json:"homepage"`
	IMDbID           *string  `json:"imdb_id"`
	OriginCountry    []string `json:"origin_country"`
	OriginalLanguage *string  `json:"original_language"`
	OriginalTitle    *string  `json:"original_title"`
	Overview         *string  `json:"overview"`
	Popularity       *float64 `json:"popularity"`
	PosterPath       *string  `json:"poster_path"`
	ReleaseDate      *string  `json:"release_date"`
	Revenue          *int64   `json:"revenue"`
	Runtime          *int     `json:"runtime"`
	Status           *string  `json:"status"`
	Tagline          *string  `json:"tagline"`
	Title            *string  `json:"title"`
	Video            *bool    `json:"video"`
	VoteAverage      *float64 `json:"vote_average"`
	VoteCount        *int64   `json:"vote_count"`

	BelongsToCollection CollectionRef `json:"belongs_to_collection"`

	Genres              []IDName   `json:"genres"`
	ProductionCompanies []Company  `json:"production_companies"`
	ProductionCountries []Country  `json:"production_countries"`
	SpokenLanguages     []Language `json:"spoken_languages"`

	AlternativeTitles *AlternativeTitles `json:"alternative_titles"`
	Credits           *Credits           `json:"credits"`
	ExternalIDs       *ExternalIDs       `json:"external_ids"`
	Keywords          *Keywords          `json:"keywords"`
	ReleaseDates      *ReleaseDates      `json:"release_dates"`
	Videos            *Videos            `json:"videos"`
}

// Series is one upstream TV series record with its appended sub-responses.
type Series struct {
	ID               int64    `json:"id"`
	Adult            *bool    `json:"adult"`
	BackdropPath     *string  `json:"backdrop_path"`
	FirstAirDate     *string  `json:"first_air_date"`
	Homepage         *string  `json:"homepage"`
	InProduction     *bool    `json:"in_production"`
	LastAirDate      *string  `json:"last_air_date"`
	Name             *string  `json:"name"`
	NumberOfEpisodes *int     `json:"number_of_episodes"`
	NumberOfSeasons  *int     `json:"number_of_seasons"`
	OriginCountry    []string `json:"origin_country"`
	OriginalLanguage *string  `json:"original_language"`
	OriginalName     *string  `json:"original_name"`
	Overview         *string  `json:"overview"`
	Popularity       *float64 `json:"popularity"`
	PosterPath       *string  `json:"poster_path"`
	Status           *string  `json:"status"`
	Tagline          *string  `json:"tagline"`
	Type             *string  `json:"type"`
	VoteAverage      *float64 `json:"vote_average"`
	VoteCount        *int64   `json:"vote_count"`

	CreatedBy           []Creator `json:"created_by"`
	Genres              []IDName  `json:"genres"`
	LastEpisodeToAir    *Episode  `json:"last_episode_to_air"`
	NextEpisodeToAir    *Episode  `json:"next_episode_to_air"`
	Networks            []Network `json:"networks"`
	ProductionCompanies []Company `json:"production_companies"`
	ProductionCountries []Country `json:"production_countries"`
	Seasons             []Season  `json:"seasons"`
	SpokenLanguages     []Language `json:"spoken_languages"`

	AlternativeTitles *AlternativeTitles `json:"alternative_titles"`
	Credits           *Credits           `json:"credits"`
	ExternalIDs       *ExternalIDs       `json:"external_ids"`
	Keywords          *Keywords          `json:"keywords"`
	Videos            *Videos            `json:"videos"`
}

// IDName covers genres and keywords.
type IDName struct {
	ID   int64   `json:"id"`
	Name *string `json:"name"`
}

// Company is a production company dimension entry.
type Company struct {
	ID            int64   `json:"id"`
	Name          *string `json:"name"`
	OriginCountry *string `json:"origin_country"`
	LogoPath      *string `json:"logo_path"`
}

// Country is keyed by its ISO 3166-1 code.
type Country struct {
	ISO31661 string  `json:"iso_3166_1"`
	Name     *string `json:"name"`
}

// Language is keyed by its ISO 639-1 code.
type Language struct {
	ISO6391     string  `json:"iso_639_1"`
	EnglishName *string `json:"english_name"`
	Name        *string `json:"name"`
}

// Creator is a series created_by entry.
type Creator struct {
	ID           int64   `json:"id"`
	CreditID     *string `json:"credit_id"`
	Name         *string `json:"name"`
	OriginalName *string `json:"original_name"`
	Gender       *int16  `json:"gender"`
	ProfilePath  *string `json:"profile_path"`
}

// Network is a series broadcaster dimension entry.
type Network struct {
	ID            int64   `json:"id"`
	LogoPath      *string `json:"logo_path"`
	Name          *string `json:"name"`
	OriginCountry *string `json:"origin_country"`
}

// Episode is a last/next_episode_to_air entry.
type Episode struct {
	ID             int64    `json:"id"`
	Name           *string  `json:"name"`
	Overview       *string  `json:"overview"`
	VoteAverage    *float64 `json:"vote_average"`
	VoteCount      *int64   `json:"vote_count"`
	AirDate        *string  `json:"air_date"`
	EpisodeNumber  *int     `json:"episode_number"`
	EpisodeType    *string  `json:"episode_type"`
	ProductionCode *string  `json:"production_code"`
	Runtime        *int     `json:"runtime"`
	SeasonNumber   *int     `json:"season_number"`
	ShowID         *int64   `json:"show_id"`
	StillPath      *string  `json:"still_path"`
}

// Season is a series season entry.
type Season struct {
	ID           int64    `json:"id"`
	AirDate      *string  `json:"air_date"`
	EpisodeCount *int     `json:"episode_count"`
	Name         *string  `json:"name"`
	Overview     *string  `json:"overview"`
	PosterPath   *string  `json:"poster_path"`
	SeasonNumber *int     `json:"season_number"`
	VoteAverage  *float64 `json:"vote_average"`
}

// AlternativeTitles wraps both upstream shapes: movies nest under "titles",
// series under "results".
type AlternativeTitles struct {
	Titles  []AlternativeTitle `json:"titles"`
	Results []AlternativeTitle `json:"results"`
}

// All returns whichever list the upstream populated.
func (a *AlternativeTitles) All() []AlternativeTitle {
	if a == nil {
		return nil
	}
	if len(a.Titles) > 0 {
		return a.Titles
	}
	return a.Results
}

// AlternativeTitle is one localized title.
type AlternativeTitle struct {
	ISO31661 *string `json:"iso_3166_1"`
	Title    *string `json:"title"`
	Type     *string `json:"type"`
}

// Credits carries the appended cast list.
type Credits struct {
	Cast []CastMember `json:"cast"`
}

// CastMember is one cast credit; Order becomes cast_order.
type CastMember struct {
	ID                 int64    `json:"id"`
	Adult              *bool    `json:"adult"`
	Gender             *int16   `json:"gender"`
	CastID             *int64   `json:"cast_id"`
	Name               *string  `json:"name"`
	OriginalName       *string  `json:"original_name"`
	KnownForDepartment *string  `json:"known_for_department"`
	Popularity         *float64 `json:"popularity"`
	ProfilePath        *string  `json:"profile_path"`
	Character          *string  `json:"character"`
	Order              *int16   `json:"order"`
}

// ExternalIDs carries cross-site identifiers; any subset may be present.
type ExternalIDs struct {
	IMDbID      *string `json:"imdb_id"`
	WikidataID  *string `json:"wikidata_id"`
	FacebookID  *string `json:"facebook_id"`
	InstagramID *string `json:"instagram_id"`
	TwitterID   *string `json:"twitter_id"`
}

// Keywords wraps both upstream shapes: movies nest under "keywords", series
// under "results".
type Keywords struct {
	Keywords []IDName `json:"keywords"`
	Results  []IDName `json:"results"`
}

// All returns whichever list the upstream populated.
func (k *Keywords) All() []IDName {
	if k == nil {
		return nil
	}
	if len(k.Keywords) > 0 {
		return k.Keywords
	}
	return k.Results
}

// ReleaseDates nests release entries per country.
type ReleaseDates struct {
	Results []CountryReleases `json:"results"`
}

// CountryReleases groups release entries under one country code.
type CountryReleases struct {
	ISO31661     *string        `json:"iso_3166_1"`
	ReleaseDates []ReleaseEntry `json:"release_dates"`
}

// ReleaseEntry is one certification/release event.
type ReleaseEntry struct {
	Certification *string `json:"certification"`
	ReleaseDate   *string `json:"release_date"`
	Type          *int    `json:"type"`
	Note          *string `json:"note"`
}

// Videos carries the appended video list.
type Videos struct {
	Results []Video `json:"results"`
}

// Video is one trailer/clip entry keyed by its upstream string id.
type Video struct {
	ID          string  `json:"id"`
	ISO6391     *string `json:"iso_639_1"`
	ISO31661    *string `json:"iso_3166_1"`
	Name        *string `json:"name"`
	Key         *string `json:"key"`
	Site        *string `json:"site"`
	Size        *int    `json:"size"`
	Type        *string `json:"type"`
	Official    *bool   `json:"official"`
	PublishedAt *string `json:"published_at"`
}

// CollectionRef decodes the three upstream shapes of
// belongs_to_collection: null, a full object, or a bare numeric id.
type CollectionRef struct {
	ID           *int64
	Name         *string
	PosterPath   *string
	BackdropPath *string
}

// UnmarshalJSON accepts null, a number, or an object.
func (c *CollectionRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = CollectionRef{}
		return nil
	}
	if data[0] != '{' {
		var id int64
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*c = CollectionRef{ID: &id}
		return nil
	}
	var obj struct {
		ID           *int64  `json:"id"`
		Name         *string `json:"name"`
		PosterPath   *string `json:"poster_path"`
		BackdropPath *string `json:"backdrop_path"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*c = CollectionRef(obj)
	return nil
}
