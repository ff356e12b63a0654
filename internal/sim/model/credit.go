package model

import "time"

type CreditType string

const (
	Credit CreditType = "CREDIT"
	Debit  CreditType = "DEBIT"
)

// CreditTransaction is one immutable ledger line. Amount is always positive;
// Type carries the sign.
type CreditTransaction struct {
	ID          string     `json:"id"`
	AgentID     string     `json:"agentId"`
	Type        CreditType `json:"type"`
	Amount      int64      `json:"amount"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
	TaskID      string     `json:"taskId,omitempty"`
}

// Signed returns the balance delta of the transaction.
func (t CreditTransaction) Signed() int64 {
	if t.Type == Debit {
		return -t.Amount
	}
	return t.Amount
}

// Ledger folds transactions into per-agent running totals. It never stores a
// balance independently of the transactions it has seen.
type Ledger struct {
	balance  map[string]int64
	earnings map[string]int64
}

func NewLedger(txs []CreditTransaction) *Ledger {
	l := &Ledger{balance: map[string]int64{}, earnings: map[string]int64{}}
	for _, tx := range txs {
		l.Apply(tx)
	}
	return l
}

func (l *Ledger) Apply(tx CreditTransaction) {
	l.balance[tx.AgentID] += tx.Signed()
	if tx.Type == Credit {
		l.earnings[tx.AgentID] += tx.Amount
	}
}

// Net is the signed sum of all transactions for agentID.
func (l *Ledger) Net(agentID string) int64 { return l.balance[agentID] }

// Earned is the sum of CREDIT transactions for agentID.
func (l *Ledger) Earned(agentID string) int64 { return l.earnings[agentID] }

// FoldBalance recomputes an agent balance from scratch in chronological order.
func FoldBalance(opening int64, agentID string, txs []CreditTransaction) int64 {
	bal := opening
	for _, tx := range txs {
		if tx.AgentID == agentID {
			bal += tx.Signed()
		}
	}
	return bal
}
