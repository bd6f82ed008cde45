package database

// QuoteTicksTable holds one row per reconciled quote update.
const QuoteTicksTable = "quote_ticks"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS quote_ticks (
		id             BIGSERIAL PRIMARY KEY,
		session_id     UUID        NOT NULL,
		channel        TEXT        NOT NULL,
		symbol         TEXT        NOT NULL,
		price          NUMERIC     NOT NULL,
		change         NUMERIC     NOT NULL,
		percent_change NUMERIC     NOT NULL,
		volume         NUMERIC,
		flash          TEXT        NOT NULL,
		generation     BIGINT      NOT NULL,
		received_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS quote_ticks_symbol_received_at_idx
		ON quote_ticks (symbol, received_at DESC)`,
}
