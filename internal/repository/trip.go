package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tripmate-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so reads can run
// inside or outside a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TripRepository handles database operations for trips, days and items
type TripRepository struct {
	db *pgxpool.Pool
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *pgxpool.Pool) *TripRepository {
	return &TripRepository{db: db}
}

const tripColumns = `id, owner_id, title, description, main_city, main_country, travel_type,
		visibility, start_date, end_date, is_demo, is_flagged, moderation_status, created_at`

func scanTrip(row pgx.Row) (*models.Trip, error) {
	var trip models.Trip
	err := row.Scan(
		&trip.ID, &trip.OwnerID, &trip.Title, &trip.Description, &trip.MainCity,
		&trip.MainCountry, &trip.TravelType, &trip.Visibility, &trip.StartDate,
		&trip.EndDate, &trip.IsDemo, &trip.IsFlagged, &trip.ModerationStatus, &trip.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("trip not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

// GetByID retrieves a trip by ID
func (r *TripRepository) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trip WHERE id = $1`
	return scanTrip(r.db.QueryRow(ctx, query, id))
}

// syncColumns maps change kinds to their writable columns. Anything not
// listed here is silently dropped from a change; unknown kinds never reach
// this map.
var syncColumns = map[string]map[string]string{
	"trip": {
		"title": "title", "description": "description", "main_city": "main_city",
		"main_country": "main_country", "travel_type": "travel_type",
		"start_date": "start_date", "end_date": "end_date",
	},
	"trip_day": {
		"date": "date", "note": "note",
	},
	"itinerary_item": {
		"title": "title", "item_type": "item_type", "sort_order": "sort_order",
		"start_time": "start_time", "end_time": "end_time", "lat": "lat", "lon": "lon",
		"day_id": "day_id", "cost_amount": "cost_amount", "cost_currency": "cost_currency",
		"booking_reference": "booking_reference",
	},
}

// KnownKind reports whether the merge understands this entity kind.
func (r *TripRepository) KnownKind(kind string) bool {
	_, ok := syncColumns[kind]
	return ok
}

// ApplyAndRead merges the given changes into canonical storage and re-reads
// the full trip within the same transaction. The returned timestamp is the
// transaction clock.
func (r *TripRepository) ApplyAndRead(ctx context.Context, tripID string, changes []models.SyncChange) (*models.TripState, time.Time, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to begin sync transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var serverTime time.Time
	if err := tx.QueryRow(ctx, `SELECT now()`).Scan(&serverTime); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read transaction clock: %w", err)
	}

	for _, change := range changes {
		if err := applyChange(ctx, tx, tripID, change); err != nil {
			return nil, time.Time{}, err
		}
	}

	state, err := readTripState(ctx, tx, tripID)
	if err != nil {
		return nil, time.Time{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to commit sync transaction: %w", err)
	}
	return state, serverTime, nil
}

// buildChangeQuery renders one change as an UPDATE. The trip id is always
// $1 so every clause, including the day reassignment subquery, is scoped to
// the trip and a delta can never reach across trips. An empty query means no
// writable field survived the whitelist.
func buildChangeQuery(tripID string, change models.SyncChange) (string, []any) {
	columns := syncColumns[change.Kind]

	args := []any{tripID}
	sets := make([]string, 0, len(change.Fields))
	for field, value := range change.Fields {
		column, ok := columns[field]
		if !ok {
			continue
		}
		args = append(args, value)
		if change.Kind == "itinerary_item" && column == "day_id" {
			// A day reference may only point inside the same trip. A foreign
			// day resolves to NULL and detaches the item instead.
			sets = append(sets, fmt.Sprintf(
				"day_id = (SELECT id FROM trip_day WHERE id = $%d AND trip_id = $1)", len(args)))
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if len(sets) == 0 {
		return "", nil
	}

	switch change.Kind {
	case "trip":
		return fmt.Sprintf(`UPDATE trip SET %s WHERE id = $1`, strings.Join(sets, ", ")), args
	case "trip_day":
		args = append(args, change.ID)
		return fmt.Sprintf(`UPDATE trip_day SET %s WHERE id = $%d AND trip_id = $1`,
			strings.Join(sets, ", "), len(args)), args
	case "itinerary_item":
		args = append(args, change.ID)
		return fmt.Sprintf(`UPDATE itinerary_item SET %s WHERE id = $%d AND trip_id = $1`,
			strings.Join(sets, ", "), len(args)), args
	}
	return "", nil
}

// applyChange writes one change last-writer-wins.
func applyChange(ctx context.Context, tx pgx.Tx, tripID string, change models.SyncChange) error {
	query, args := buildChangeQuery(tripID, change)
	if query == "" {
		return nil
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to apply %s change: %w", change.Kind, err)
	}
	return nil
}

func readTripState(ctx context.Context, q querier, tripID string) (*models.TripState, error) {
	trip, err := scanTrip(q.QueryRow(ctx, `SELECT `+tripColumns+` FROM trip WHERE id = $1`, tripID))
	if err != nil {
		return nil, err
	}

	state := &models.TripState{
		Trip:            *trip,
		Days:            []models.TripDayState{},
		UnassignedItems: []models.ItineraryItem{},
		Collaborators:   []models.CollaboratorSummary{},
	}

	dayRows, err := q.Query(ctx, `
		SELECT id, trip_id, day_index, date, note
		FROM trip_day
		WHERE trip_id = $1
		ORDER BY day_index
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to read trip days: %w", err)
	}
	dayIndex := make(map[string]int)
	for dayRows.Next() {
		var day models.TripDay
		if err := dayRows.Scan(&day.ID, &day.TripID, &day.DayIndex, &day.Date, &day.Note); err != nil {
			dayRows.Close()
			return nil, fmt.Errorf("failed to scan trip day: %w", err)
		}
		dayIndex[day.ID] = len(state.Days)
		state.Days = append(state.Days, models.TripDayState{TripDay: day, Items: []models.ItineraryItem{}})
	}
	dayRows.Close()
	if err := dayRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trip days: %w", err)
	}

	itemRows, err := q.Query(ctx, `
		SELECT id, trip_id, day_id, title, item_type, sort_order, start_time, end_time,
			lat, lon, destination_id, cost_amount, cost_currency, booking_reference
		FROM itinerary_item
		WHERE trip_id = $1
		ORDER BY sort_order, id
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to read itinerary items: %w", err)
	}
	for itemRows.Next() {
		var item models.ItineraryItem
		if err := itemRows.Scan(
			&item.ID, &item.TripID, &item.DayID, &item.Title, &item.ItemType, &item.SortOrder,
			&item.StartTime, &item.EndTime, &item.Lat, &item.Lon, &item.DestinationID,
			&item.CostAmount, &item.CostCurrency, &item.BookingReference,
		); err != nil {
			itemRows.Close()
			return nil, fmt.Errorf("failed to scan itinerary item: %w", err)
		}
		if item.DayID != nil {
			if i, ok := dayIndex[*item.DayID]; ok {
				state.Days[i].Items = append(state.Days[i].Items, item)
				continue
			}
		}
		state.UnassignedItems = append(state.UnassignedItems, item)
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read itinerary items: %w", err)
	}

	collabRows, err := q.Query(ctx, `
		SELECT c.user_id, COALESCE(u.email, c.invited_email, ''), c.role, c.status
		FROM trip_collaborator c
		LEFT JOIN app_user u ON u.id = c.user_id
		WHERE c.trip_id = $1
		ORDER BY c.invited_at, c.id
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to read collaborators: %w", err)
	}
	for collabRows.Next() {
		var summary models.CollaboratorSummary
		if err := collabRows.Scan(&summary.UserID, &summary.Email, &summary.Role, &summary.Status); err != nil {
			collabRows.Close()
			return nil, fmt.Errorf("failed to scan collaborator: %w", err)
		}
		state.Collaborators = append(state.Collaborators, summary)
	}
	collabRows.Close()
	if err := collabRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read collaborators: %w", err)
	}

	return state, nil
}

// CopyTemplate atomically clones a public trip as a new private trip owned
// by the caller. Day ids are remapped; cost and booking fields are cleared
// so financial data never leaks from a public template.
func (r *TripRepository) CopyTemplate(ctx context.Context, sourceTripID, ownerID string) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin copy transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	source, err := scanTrip(tx.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trip WHERE id = $1 AND visibility = $2`,
		sourceTripID, models.VisibilityPublic))
	if err != nil {
		return "", err
	}

	newTripID := uuid.New().String()
	_, err = tx.Exec(ctx, `
		INSERT INTO trip (id, owner_id, title, description, main_city, main_country, travel_type,
			visibility, start_date, end_date, is_demo, is_flagged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, false, $11)
	`, newTripID, ownerID, source.Title, source.Description, source.MainCity, source.MainCountry,
		source.TravelType, models.VisibilityPrivate, source.StartDate, source.EndDate, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to insert copied trip: %w", err)
	}

	dayRows, err := tx.Query(ctx, `
		SELECT id, day_index, date, note
		FROM trip_day
		WHERE trip_id = $1
		ORDER BY day_index
	`, sourceTripID)
	if err != nil {
		return "", fmt.Errorf("failed to read source days: %w", err)
	}
	var sourceDays []models.TripDay
	for dayRows.Next() {
		var day models.TripDay
		if err := dayRows.Scan(&day.ID, &day.DayIndex, &day.Date, &day.Note); err != nil {
			dayRows.Close()
			return "", fmt.Errorf("failed to scan source day: %w", err)
		}
		sourceDays = append(sourceDays, day)
	}
	dayRows.Close()
	if err := dayRows.Err(); err != nil {
		return "", fmt.Errorf("failed to read source days: %w", err)
	}

	dayIDMap := make(map[string]string, len(sourceDays))
	for _, day := range sourceDays {
		newDayID := uuid.New().String()
		dayIDMap[day.ID] = newDayID
		_, err = tx.Exec(ctx, `
			INSERT INTO trip_day (id, trip_id, day_index, date, note)
			VALUES ($1, $2, $3, $4, $5)
		`, newDayID, newTripID, day.DayIndex, day.Date, day.Note)
		if err != nil {
			return "", fmt.Errorf("failed to insert copied day: %w", err)
		}
	}

	itemRows, err := tx.Query(ctx, `
		SELECT day_id, title, item_type, sort_order, start_time, end_time, lat, lon, destination_id
		FROM itinerary_item
		WHERE trip_id = $1
		ORDER BY sort_order, id
	`, sourceTripID)
	if err != nil {
		return "", fmt.Errorf("failed to read source items: %w", err)
	}
	var sourceItems []models.ItineraryItem
	for itemRows.Next() {
		var item models.ItineraryItem
		if err := itemRows.Scan(&item.DayID, &item.Title, &item.ItemType, &item.SortOrder,
			&item.StartTime, &item.EndTime, &item.Lat, &item.Lon, &item.DestinationID); err != nil {
			itemRows.Close()
			return "", fmt.Errorf("failed to scan source item: %w", err)
		}
		sourceItems = append(sourceItems, item)
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		return "", fmt.Errorf("failed to read source items: %w", err)
	}

	for _, item := range sourceItems {
		var newDayID *string
		if item.DayID != nil {
			if mapped, ok := dayIDMap[*item.DayID]; ok {
				newDayID = &mapped
			}
		}
		// Destinations are shared global entities and stay referenced as-is.
		_, err = tx.Exec(ctx, `
			INSERT INTO itinerary_item (id, trip_id, day_id, title, item_type, sort_order,
				start_time, end_time, lat, lon, destination_id,
				cost_amount, cost_currency, booking_reference)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL, NULL, '')
		`, uuid.New().String(), newTripID, newDayID, item.Title, item.ItemType, item.SortOrder,
			item.StartTime, item.EndTime, item.Lat, item.Lon, item.DestinationID)
		if err != nil {
			return "", fmt.Errorf("failed to insert copied item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit copy transaction: %w", err)
	}
	return newTripID, nil
}
