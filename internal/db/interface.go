// Package db provides warehouse access for exports: the same star schema
// written through SQLite (reporting handoff) or DuckDB (analytical
// warehouse), behind one interface.
package db

import "database/sql"

// Database is the common surface over the SQLite and DuckDB backends.
type Database interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Begin() (*sql.Tx, error)
	Close() error
	Path() string
}

var _ Database = (*DB)(nil)
var _ Database = (*DuckDB)(nil)

// starSchema is the warehouse DDL, written in the dialect subset both
// engines accept.
const starSchema = `
CREATE TABLE IF NOT EXISTS dim_time (
    date_key INTEGER PRIMARY KEY,
    date TEXT,
    day INTEGER,
    month INTEGER,
    quarter INTEGER,
    year INTEGER,
    weekday INTEGER,
    is_month_end INTEGER
);

CREATE TABLE IF NOT EXISTS dim_customer (
    customer_id BIGINT PRIMARY KEY,
    segment TEXT,
    region TEXT,
    risk_score DOUBLE,
    acquisition_date TEXT,
    churn_date TEXT,
    is_active INTEGER
);

CREATE TABLE IF NOT EXISTS dim_product (
    product_id BIGINT PRIMARY KEY,
    product_name TEXT,
    category TEXT,
    base_price DOUBLE,
    direct_cost_ratio DOUBLE
);

CREATE TABLE IF NOT EXISTS dim_account (
    account_id BIGINT PRIMARY KEY,
    account_name TEXT,
    account_type TEXT,
    account_group TEXT,
    reporting_line TEXT
);

CREATE TABLE IF NOT EXISTS dim_cost_center (
    cost_center_id BIGINT PRIMARY KEY,
    department TEXT,
    country TEXT,
    manager TEXT
);

CREATE TABLE IF NOT EXISTS fact_transactions (
    transaction_id BIGINT PRIMARY KEY,
    date_key INTEGER,
    customer_id BIGINT,
    product_id BIGINT,
    quantity INTEGER,
    net_revenue DOUBLE,
    direct_cost DOUBLE,
    channel TEXT
);

CREATE TABLE IF NOT EXISTS fact_financials (
    posting_id BIGINT PRIMARY KEY,
    date_key INTEGER,
    account_id BIGINT,
    cost_center_id BIGINT,
    amount DOUBLE,
    currency TEXT
);

CREATE TABLE IF NOT EXISTS predicted_churn (
    customer_id BIGINT PRIMARY KEY,
    churn_probability DOUBLE,
    churn_label INTEGER,
    run_id TEXT,
    run_date TEXT
);
`
