package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created DATETIME NOT NULL,
	instruments TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	initial_cash REAL NOT NULL,
	final_value REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	total_return REAL,
	cagr REAL,
	sharpe REAL,
	sortino REAL,
	max_drawdown REAL,
	calmar REAL,
	profit_factor REAL,
	win_rate REAL,
	config BLOB,
	notes TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	direction TEXT NOT NULL,
	shares INTEGER NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	return_pct REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	holdings REAL NOT NULL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);
`
