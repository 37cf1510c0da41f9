package main

import (
	"context"
	"database/sql"
	"log"

	"tradewind/cmd/server/config"
	ordersdb "tradewind/internal/db/orders"
)

var openOrdersDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// orderStores bundles the Postgres-backed persistence for one database
// connection.
type orderStores struct {
	Orders   *ordersdb.OrderStore
	Sagas    *ordersdb.SagaStore
	SubmitTx *ordersdb.SubmitTx
}

func buildOrderStores(ctx context.Context) (orderStores, func(), error) {
	databaseURL, err := config.GetDatabaseURL()
	if err != nil {
		return orderStores{}, nil, err
	}

	db, err := openOrdersDB("pgx", databaseURL)
	if err != nil {
		return orderStores{}, nil, err
	}

	orderStore, err := ordersdb.NewOrderStoreWithSchema(ctx, db)
	if err != nil {
		_ = db.Close()
		return orderStores{}, nil, err
	}
	sagaStore, err := ordersdb.NewSagaStoreWithSchema(ctx, db)
	if err != nil {
		_ = db.Close()
		return orderStores{}, nil, err
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("close orders db: %v", err)
		}
	}
	return orderStores{
		Orders:   orderStore,
		Sagas:    sagaStore,
		SubmitTx: ordersdb.NewSubmitTx(db),
	}, cleanup, nil
}
