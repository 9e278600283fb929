package handler

import "github.com/gorilla/mux"

type Handlers struct {
	Accounts     *AccountHandler
	Transactions *TransactionHandler
	Dashboard    *DashboardHandler
}

// Register mounts the API routes on r. Fixed transaction paths come before
// the {id} routes.
func (h Handlers) Register(r *mux.Router) {
	r.HandleFunc("/transactions", h.Transactions.ListSummaries).Methods("GET")
	r.HandleFunc("/transactions", h.Transactions.CreateTransaction).Methods("POST")
	r.HandleFunc("/transactions/type", h.Transactions.ListByType).Methods("GET")
	r.HandleFunc("/transactions/projection", h.Transactions.Projection).Methods("GET")
	r.HandleFunc("/transactions/paged", h.Transactions.Paged).Methods("GET")
	r.HandleFunc("/transactions/dashboard", h.Dashboard.Dashboard).Methods("GET")
	r.HandleFunc("/transactions/{id:[0-9]+}", h.Transactions.GetTransaction).Methods("GET")
	r.HandleFunc("/transactions/{id:[0-9]+}", h.Transactions.UpdateTransaction).Methods("PUT")
	r.HandleFunc("/transactions/{id:[0-9]+}", h.Transactions.DeleteTransaction).Methods("DELETE")

	r.HandleFunc("/accounts", h.Accounts.ListAccounts).Methods("GET")
	r.HandleFunc("/accounts", h.Accounts.CreateAccount).Methods("POST")
	r.HandleFunc("/accounts/{id:[0-9]+}", h.Accounts.GetAccount).Methods("GET")
	r.HandleFunc("/accounts/{id:[0-9]+}", h.Accounts.UpdateAccount).Methods("PUT")
	r.HandleFunc("/accounts/{id:[0-9]+}", h.Accounts.DeleteAccount).Methods("DELETE")
}
