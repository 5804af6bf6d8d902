package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/repository"
)

type runRepository struct {
	db *DB
}

func NewRunRepository(db *DB) repository.RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) SaveRun(ctx context.Context, run *domain.SimulationRun, records []domain.SimulationRecord) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		insertRun := `
			INSERT INTO simulation_runs (
				run_uuid, store_id, product_id,
				lead_time_days, safety_stock_factor, holding_cost_rate,
				stockout_cost_rate, fixed_order_cost, initial_inventory,
				days, total_cost, total_stockout, orders_placed, total_sales,
				source, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
			RETURNING id, created_at
		`
		err := tx.QueryRowContext(ctx, insertRun,
			run.RunUUID, run.StoreID, run.ProductID,
			run.LeadTimeDays, run.SafetyStockFactor, run.HoldingCostRate,
			run.StockoutCostRate, run.FixedOrderCost, run.InitialInventory,
			run.Days, run.TotalCost, run.TotalStockout, run.OrdersPlaced, run.TotalSales,
			run.Source,
		).Scan(&run.ID, &run.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		insertRecord := `
			INSERT INTO simulation_records (
				run_id, date, demand, forecast,
				start_inventory, units_sold, stockout_qty, order_qty,
				ending_inventory, holding_cost, stockout_cost, order_cost, total_cost
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		stmt, err := tx.PrepareContext(ctx, insertRecord)
		if err != nil {
			return fmt.Errorf("failed to prepare record insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			_, err := stmt.ExecContext(ctx,
				run.ID, rec.Date, rec.Demand, rec.Forecast,
				rec.StartInventory, rec.UnitsSold, rec.StockoutQty, rec.OrderQty,
				rec.EndingInventory, rec.HoldingCost, rec.StockoutCost, rec.OrderCost, rec.TotalCost,
			)
			if err != nil {
				return fmt.Errorf("failed to insert record: %w", err)
			}
		}

		return nil
	})
}

func (r *runRepository) GetRun(ctx context.Context, runUUID string) (*domain.SimulationRun, []domain.SimulationRecord, error) {
	runQuery := `
		SELECT id, run_uuid, store_id, product_id,
			lead_time_days, safety_stock_factor, holding_cost_rate,
			stockout_cost_rate, fixed_order_cost, initial_inventory,
			days, total_cost, total_stockout, orders_placed, total_sales,
			source, created_at
		FROM simulation_runs
		WHERE run_uuid = $1
	`
	var run domain.SimulationRun
	if err := r.db.GetContext(ctx, &run, runQuery, runUUID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get run: %w", err)
	}

	recordsQuery := `
		SELECT date, demand, forecast,
			start_inventory, units_sold, stockout_qty, order_qty,
			ending_inventory, holding_cost, stockout_cost, order_cost, total_cost
		FROM simulation_records
		WHERE run_id = $1
		ORDER BY date ASC
	`
	var records []domain.SimulationRecord
	if err := r.db.SelectContext(ctx, &records, recordsQuery, run.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to get run records: %w", err)
	}

	return &run, records, nil
}

func (r *runRepository) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.SimulationRun, int, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM simulation_runs
		WHERE 1=1
	`

	query := `
		SELECT id, run_uuid, store_id, product_id,
			lead_time_days, safety_stock_factor, holding_cost_rate,
			stockout_cost_rate, fixed_order_cost, initial_inventory,
			days, total_cost, total_stockout, orders_placed, total_sales,
			source, created_at
		FROM simulation_runs
		WHERE 1=1
	`

	var args []interface{}
	var conditions []string
	argCounter := 1

	if len(filter.StoreIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("store_id = ANY($%d::text[])", argCounter))
		args = append(args, pq.Array(filter.StoreIDs))
		argCounter++
	}

	if len(filter.ProductIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("product_id = ANY($%d::text[])", argCounter))
		args = append(args, pq.Array(filter.ProductIDs))
		argCounter++
	}

	if filter.From != "" {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d::date", argCounter))
		args = append(args, filter.From)
		argCounter++
	}

	if filter.To != "" {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d::date + INTERVAL '1 day'", argCounter))
		args = append(args, filter.To)
		argCounter++
	}

	if len(conditions) > 0 {
		whereClause := " AND " + strings.Join(conditions, " AND ")
		query += whereClause
		countQuery += whereClause
	}

	// Get total count
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	query += " ORDER BY created_at DESC, id DESC"

	// Add pagination
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCounter, argCounter+1)
	args = append(args, pageSize, (page-1)*pageSize)

	var runs []domain.SimulationRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, total, nil
}
