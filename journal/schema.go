package journal

// Decimal columns are TEXT on purpose: shares and cash round-trip
// through shopspring/decimal without float drift.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	trade_id TEXT NOT NULL UNIQUE,
	date TEXT NOT NULL,
	ticker TEXT NOT NULL,
	side TEXT NOT NULL,
	shares TEXT NOT NULL,
	price TEXT NOT NULL,
	cash_after TEXT NOT NULL,
	stop_loss TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(date);

CREATE TABLE IF NOT EXISTS snapshots (
	date TEXT PRIMARY KEY,
	cash TEXT NOT NULL,
	equity TEXT NOT NULL,
	through_seq INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS snapshot_positions (
	date TEXT NOT NULL,
	ticker TEXT NOT NULL,
	shares TEXT NOT NULL,
	cost_basis TEXT NOT NULL,
	stop_loss TEXT NOT NULL,
	price TEXT NOT NULL,
	opened_on TEXT NOT NULL,
	PRIMARY KEY (date, ticker)
);
`
