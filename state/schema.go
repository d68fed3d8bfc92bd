package state

var (
	// one row per swap; record holds the json encoded swap.Info
	swapTable = `CREATE TABLE IF NOT EXISTS swap (
		id VARCHAR(64) PRIMARY KEY NOT NULL,
		status VARCHAR(10) NOT NULL,
		hashLock CHAR(64) NOT NULL,
		record BLOB NOT NULL,
		updatedAt BIGINT NOT NULL,
		CONSTRAINT chk_status CHECK (status IN ('PENDING', 'INITIATED', 'CLAIMED', 'REFUNDED', 'FAILED')),
		CONSTRAINT chk_id CHECK (id != '')
	);`

	swapStatusIndex = `CREATE INDEX IF NOT EXISTS idx_swap_status ON swap (status);`
)
