package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mixdown-games/encore/internal/models"
)

// Postgres is the durable Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool against connString and pings it.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying pool.
func (pg *Postgres) Close() {
	pg.pool.Close()
}

// Migrate creates the schema if it does not exist yet.
func (pg *Postgres) Migrate(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS parties (
			id UUID PRIMARY KEY,
			join_code TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			host_id UUID NOT NULL,
			songs_per_player INT NOT NULL,
			play_duration_sec INT NOT NULL,
			bonus_category_count INT NOT NULL,
			theme_ratings BOOLEAN NOT NULL DEFAULT FALSE,
			vote_comments BOOLEAN NOT NULL DEFAULT FALSE,
			power_ups BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS players (
			id UUID PRIMARY KEY,
			party_id UUID NOT NULL REFERENCES parties(id) ON DELETE CASCADE,
			display_name TEXT NOT NULL,
			is_host BOOLEAN NOT NULL DEFAULT FALSE,
			connected BOOLEAN NOT NULL DEFAULT TRUE,
			power_points INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS songs (
			id UUID PRIMARY KEY,
			party_id UUID NOT NULL REFERENCES parties(id) ON DELETE CASCADE,
			player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			track_id TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			artwork_url TEXT NOT NULL DEFAULT '',
			permalink TEXT NOT NULL DEFAULT '',
			duration_ms INT NOT NULL DEFAULT 0,
			confidence INT NOT NULL,
			round_number INT NOT NULL,
			queue_position INT NOT NULL DEFAULT 0,
			insured BOOLEAN NOT NULL DEFAULT FALSE,
			raw_average DOUBLE PRECISION,
			weighted_score DOUBLE PRECISION,
			confidence_modifier DOUBLE PRECISION,
			final_score DOUBLE PRECISION,
			histogram JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS votes (
			id UUID PRIMARY KEY,
			song_id UUID NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
			voter_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			rating INT NOT NULL,
			locked BOOLEAN NOT NULL DEFAULT FALSE,
			theme_rating INT,
			boosted BOOLEAN NOT NULL DEFAULT FALSE,
			comment TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (song_id, voter_id)
		)`,
		`CREATE TABLE IF NOT EXISTS identities (
			party_id UUID NOT NULL REFERENCES parties(id) ON DELETE CASCADE,
			player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			alias TEXT NOT NULL,
			silhouette TEXT NOT NULL,
			color TEXT NOT NULL,
			revealed BOOLEAN NOT NULL DEFAULT FALSE,
			revealed_at TIMESTAMPTZ,
			reveal_order INT NOT NULL DEFAULT 0,
			PRIMARY KEY (party_id, player_id),
			UNIQUE (party_id, alias),
			UNIQUE (party_id, silhouette),
			UNIQUE (party_id, color)
		)`,
	}
	for _, stmt := range ddl {
		if _, err := pg.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// mapPgError converts pgx-level errors into store sentinels.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (pg *Postgres) CreateParty(ctx context.Context, p *models.Party) error {
	q := `
	INSERT INTO parties (
		id, join_code, status, host_id,
		songs_per_player, play_duration_sec, bonus_category_count,
		theme_ratings, vote_comments, power_ups,
		created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	err := pgx.BeginTxFunc(ctx, pg.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			p.ID, p.JoinCode, p.Status, p.HostID,
			p.Settings.SongsPerPlayer, p.Settings.PlayDurationSec, p.Settings.BonusCategoryCount,
			p.Settings.ThemeRatings, p.Settings.VoteComments, p.Settings.PowerUps,
			p.CreatedAt,
		)
		return err
	})
	return mapPgError(err)
}

const partyColumns = `
	id, join_code, status, host_id,
	songs_per_player, play_duration_sec, bonus_category_count,
	theme_ratings, vote_comments, power_ups,
	created_at, started_at, completed_at
`

func scanParty(row pgx.Row) (*models.Party, error) {
	var p models.Party
	err := row.Scan(
		&p.ID, &p.JoinCode, &p.Status, &p.HostID,
		&p.Settings.SongsPerPlayer, &p.Settings.PlayDurationSec, &p.Settings.BonusCategoryCount,
		&p.Settings.ThemeRatings, &p.Settings.VoteComments, &p.Settings.PowerUps,
		&p.CreatedAt, &p.StartedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &p, nil
}

func (pg *Postgres) GetParty(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	q := `SELECT ` + partyColumns + ` FROM parties WHERE id = $1`
	return scanParty(pg.pool.QueryRow(ctx, q, id))
}

func (pg *Postgres) GetPartyByCode(ctx context.Context, code string) (*models.Party, error) {
	q := `SELECT ` + partyColumns + ` FROM parties WHERE join_code = $1`
	return scanParty(pg.pool.QueryRow(ctx, q, code))
}

func (pg *Postgres) SetPartyStatus(ctx context.Context, id uuid.UUID, status models.PartyStatus, startedAt, completedAt *time.Time) error {
	q := `
	UPDATE parties
	SET status = $2,
	    started_at = COALESCE($3, started_at),
	    completed_at = COALESCE($4, completed_at)
	WHERE id = $1
	`
	tag, err := pg.pool.Exec(ctx, q, id, status, startedAt, completedAt)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (pg *Postgres) CreatePlayer(ctx context.Context, pl *models.Player) error {
	q := `
	INSERT INTO players (id, party_id, display_name, is_host, connected, power_points, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	err := pgx.BeginTxFunc(ctx, pg.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, pl.ID, pl.PartyID, pl.DisplayName, pl.IsHost, pl.Connected, pl.PowerPoints, pl.CreatedAt)
		return err
	})
	return mapPgError(err)
}

const playerColumns = `id, party_id, display_name, is_host, connected, power_points, created_at`

func (pg *Postgres) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`
	var pl models.Player
	err := pg.pool.QueryRow(ctx, q, id).Scan(
		&pl.ID, &pl.PartyID, &pl.DisplayName, &pl.IsHost, &pl.Connected, &pl.PowerPoints, &pl.CreatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &pl, nil
}

func (pg *Postgres) ListPlayers(ctx context.Context, partyID uuid.UUID) ([]*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE party_id = $1 ORDER BY created_at, id`
	rows, err := pg.pool.Query(ctx, q, partyID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		var pl models.Player
		if err := rows.Scan(&pl.ID, &pl.PartyID, &pl.DisplayName, &pl.IsHost, &pl.Connected, &pl.PowerPoints, &pl.CreatedAt); err != nil {
			return nil, err
		}
		players = append(players, &pl)
	}
	return players, rows.Err()
}

func (pg *Postgres) SetPlayerConnected(ctx context.Context, id uuid.UUID, connected bool) error {
	tag, err := pg.pool.Exec(ctx, `UPDATE players SET connected = $2 WHERE id = $1`, id, connected)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (pg *Postgres) AddPowerPoints(ctx context.Context, id uuid.UUID, delta int) error {
	// Single-statement increment keeps the read-modify-write atomic.
	tag, err := pg.pool.Exec(ctx, `UPDATE players SET power_points = power_points + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (pg *Postgres) InsertSongCapped(ctx context.Context, s *models.Song, limit int) error {
	err := pgx.BeginTxFunc(ctx, pg.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// Lock the party row so concurrent submissions for the same party
		// serialize on the count check.
		var partyID uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM parties WHERE id = $1 FOR UPDATE`, s.PartyID).Scan(&partyID); err != nil {
			return err
		}
		var count int
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM songs WHERE party_id = $1 AND player_id = $2`,
			s.PartyID, s.PlayerID,
		).Scan(&count)
		if err != nil {
			return err
		}
		if count >= limit {
			return ErrLimitExceeded
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO songs (
				id, party_id, player_id,
				track_id, title, artist, artwork_url, permalink, duration_ms,
				confidence, round_number, queue_position, insured, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			s.ID, s.PartyID, s.PlayerID,
			s.Track.TrackID, s.Track.Title, s.Track.Artist, s.Track.ArtworkURL, s.Track.Permalink, s.Track.DurationMS,
			s.Confidence, s.RoundNumber, s.QueuePosition, s.Insured, s.CreatedAt,
		)
		return err
	})
	if errors.Is(err, ErrLimitExceeded) {
		return ErrLimitExceeded
	}
	return mapPgError(err)
}

const songColumns = `
	id, party_id, player_id,
	track_id, title, artist, artwork_url, permalink, duration_ms,
	confidence, round_number, queue_position, insured,
	raw_average, weighted_score, confidence_modifier, final_score, histogram,
	created_at
`

func scanSong(row pgx.Row) (*models.Song, error) {
	var s models.Song
	var rawAvg, weighted, confMod, final *float64
	var histogram []byte
	err := row.Scan(
		&s.ID, &s.PartyID, &s.PlayerID,
		&s.Track.TrackID, &s.Track.Title, &s.Track.Artist, &s.Track.ArtworkURL, &s.Track.Permalink, &s.Track.DurationMS,
		&s.Confidence, &s.RoundNumber, &s.QueuePosition, &s.Insured,
		&rawAvg, &weighted, &confMod, &final, &histogram,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	if final != nil && rawAvg != nil && weighted != nil && confMod != nil {
		score := &models.SongScore{
			RawAverage:         *rawAvg,
			WeightedScore:      *weighted,
			ConfidenceModifier: *confMod,
			FinalScore:         *final,
		}
		if histogram != nil {
			if err := json.Unmarshal(histogram, &score.Histogram); err != nil {
				return nil, fmt.Errorf("decode histogram: %w", err)
			}
		}
		s.Score = score
	}
	return &s, nil
}

func (pg *Postgres) GetSong(ctx context.Context, id uuid.UUID) (*models.Song, error) {
	q := `SELECT ` + songColumns + ` FROM songs WHERE id = $1`
	return scanSong(pg.pool.QueryRow(ctx, q, id))
}

func (pg *Postgres) ListSongs(ctx context.Context, partyID uuid.UUID) ([]*models.Song, error) {
	q := `SELECT ` + songColumns + ` FROM songs WHERE party_id = $1 ORDER BY created_at, id`
	rows, err := pg.pool.Query(ctx, q, partyID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var songs []*models.Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

func (pg *Postgres) CountSongs(ctx context.Context, partyID, playerID uuid.UUID) (int, error) {
	var count int
	err := pg.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM songs WHERE party_id = $1 AND player_id = $2`,
		partyID, playerID,
	).Scan(&count)
	return count, mapPgError(err)
}

func (pg *Postgres) CountSongsByPlayer(ctx context.Context, partyID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := pg.pool.Query(ctx,
		`SELECT player_id, COUNT(*) FROM songs WHERE party_id = $1 GROUP BY player_id`,
		partyID,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var playerID uuid.UUID
		var count int
		if err := rows.Scan(&playerID, &count); err != nil {
			return nil, err
		}
		counts[playerID] = count
	}
	return counts, rows.Err()
}

func (pg *Postgres) SetQueuePositions(ctx context.Context, partyID uuid.UUID, positions map[uuid.UUID]int) error {
	err := pgx.BeginTxFunc(ctx, pg.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for songID, pos := range positions {
			tag, err := tx.Exec(ctx,
				`UPDATE songs SET queue_position = $3 WHERE id = $1 AND party_id = $2`,
				songID, partyID, pos,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return mapPgError(err)
}

func (pg *Postgres) SetSongInsured(ctx context.Context, songID uuid.UUID, insured bool) error {
	tag, err := pg.pool.Exec(ctx, `UPDATE songs SET insured = $2 WHERE id = $1`, songID, insured)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (pg *Postgres) SetSongScore(ctx context.Context, songID uuid.UUID, score *models.SongScore) error {
	histogram, err := json.Marshal(score.Histogram)
	if err != nil {
		return fmt.Errorf("encode histogram: %w", err)
	}
	tag, err := pg.pool.Exec(ctx, `
		UPDATE songs
		SET raw_average = $2, weighted_score = $3, confidence_modifier = $4, final_score = $5, histogram = $6
		WHERE id = $1`,
		songID, score.RawAverage, score.WeightedScore, score.ConfidenceModifier, score.FinalScore, histogram,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (pg *Postgres) InsertVoteUnique(ctx context.Context, v *models.Vote) error {
	q := `
	INSERT INTO votes (id, song_id, voter_id, rating, locked, theme_rating, boosted, comment, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	err := pgx.BeginTxFunc(ctx, pg.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, v.ID, v.SongID, v.VoterID, v.Rating, v.Locked, v.ThemeRating, v.Boosted, v.Comment, v.CreatedAt)
		return err
	})
	return mapPgError(err)
}

const voteColumns = `id, song_id, voter_id, rating, locked, theme_rating, boosted, comment, created_at`

func (pg *Postgres) GetVote(ctx context.Context, id uuid.UUID) (*models.Vote, error) {
	q := `SELECT ` + voteColumns + ` FROM votes WHERE id = $1`
	var v models.Vote
	err := pg.pool.QueryRow(ctx, q, id).Scan(
		&v.ID, &v.SongID, &v.VoterID, &v.Rating, &v.Locked, &v.ThemeRating, &v.Boosted, &v.Comment, &v.CreatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &v, nil
}

func (pg *Postgres) ListVotesBySong(ctx context.Context, songID uuid.UUID) ([]*models.Vote, error) {
	q := `SELECT ` + voteColumns + ` FROM votes WHERE song_id = $1 ORDER BY created_at, id`
	rows, err := pg.pool.Query(ctx, q, songID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var votes []*models.Vote
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.SongID, &v.VoterID, &v.Rating, &v.Locked, &v.ThemeRating, &v.Boosted, &v.Comment, &v.CreatedAt); err != nil {
			return nil, err
		}
		votes = append(votes, &v)
	}
	return votes, rows.Err()
}

func (pg *Postgres) SetVoteBoosted(ctx context.Context, voteID uuid.UUID, boosted bool) error {
	tag, err := pg.pool.Exec(ctx, `UPDATE votes SET boosted = $2 WHERE id = $1`, voteID, boosted)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (pg *Postgres) LockVote(ctx context.Context, id uuid.UUID) error {
	tag, err := pg.pool.Exec(ctx, `UPDATE votes SET locked = TRUE WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (pg *Postgres) LockVotesBySong(ctx context.Context, songID uuid.UUID) (int, error) {
	tag, err := pg.pool.Exec(ctx, `UPDATE votes SET locked = TRUE WHERE song_id = $1 AND NOT locked`, songID)
	if err != nil {
		return 0, mapPgError(err)
	}
	return int(tag.RowsAffected()), nil
}

func (pg *Postgres) InsertIdentities(ctx context.Context, ids []*models.Identity) error {
	err := pgx.BeginTxFunc(ctx, pg.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, id := range ids {
			_, err := tx.Exec(ctx, `
				INSERT INTO identities (party_id, player_id, alias, silhouette, color, revealed, reveal_order)
				VALUES ($1, $2, $3, $4, $5, FALSE, 0)`,
				id.PartyID, id.PlayerID, id.Alias, id.Silhouette, id.Color,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return mapPgError(err)
}

const identityColumns = `party_id, player_id, alias, silhouette, color, revealed, revealed_at, reveal_order`

func (pg *Postgres) GetIdentity(ctx context.Context, partyID, playerID uuid.UUID) (*models.Identity, error) {
	q := `SELECT ` + identityColumns + ` FROM identities WHERE party_id = $1 AND player_id = $2`
	var id models.Identity
	err := pg.pool.QueryRow(ctx, q, partyID, playerID).Scan(
		&id.PartyID, &id.PlayerID, &id.Alias, &id.Silhouette, &id.Color, &id.Revealed, &id.RevealedAt, &id.RevealOrder,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &id, nil
}

func (pg *Postgres) ListIdentities(ctx context.Context, partyID uuid.UUID) ([]*models.Identity, error) {
	q := `
	SELECT i.party_id, i.player_id, i.alias, i.silhouette, i.color, i.revealed, i.revealed_at, i.reveal_order
	FROM identities i
	JOIN players p ON p.id = i.player_id
	WHERE i.party_id = $1
	ORDER BY p.created_at, p.id
	`
	rows, err := pg.pool.Query(ctx, q, partyID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var identities []*models.Identity
	for rows.Next() {
		var id models.Identity
		if err := rows.Scan(&id.PartyID, &id.PlayerID, &id.Alias, &id.Silhouette, &id.Color, &id.Revealed, &id.RevealedAt, &id.RevealOrder); err != nil {
			return nil, err
		}
		identities = append(identities, &id)
	}
	return identities, rows.Err()
}

func (pg *Postgres) MarkRevealed(ctx context.Context, partyID, playerID uuid.UUID, order int, at time.Time) error {
	tag, err := pg.pool.Exec(ctx, `
		UPDATE identities
		SET revealed = TRUE, revealed_at = $3, reveal_order = $4
		WHERE party_id = $1 AND player_id = $2`,
		partyID, playerID, at, order,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
