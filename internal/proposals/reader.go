package proposals

import (
	"context"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/chain"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/sirupsen/logrus"
)

// Proposal is a decoded proposal account and its address.
type Proposal struct {
	Address solana.PublicKey `json:"address"`
	*programs.Proposal
}

// Reader lists and loads autocrat proposals.
type Reader struct {
	client  chain.Client
	program solana.PublicKey
	logger  *logrus.Logger
}

func NewReader(client chain.Client, ids programs.ProgramIDs, logger *logrus.Logger) *Reader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reader{client: client, program: ids.Autocrat, logger: logger}
}

func (r *Reader) Get(ctx context.Context, addr solana.PublicKey) (*Proposal, error) {
	data, err := r.client.FetchAccount(ctx, addr)
	if err != nil {
		return nil, chain.Required(err, "proposal", addr)
	}
	p, err := programs.DecodeProposal(data)
	if err != nil {
		return nil, err
	}
	return &Proposal{Address: addr, Proposal: p}, nil
}

// List returns every proposal, newest (highest number) first. Accounts that
// fail to decode are skipped.
func (r *Reader) List(ctx context.Context) ([]*Proposal, error) {
	accts, err := r.client.FetchProgramAccounts(ctx, r.program, programs.ProposalDiscriminator())
	if err != nil {
		return nil, err
	}

	out := make([]*Proposal, 0, len(accts))
	for _, a := range accts {
		p, err := programs.DecodeProposal(a.Data)
		if err != nil {
			r.logger.WithError(err).WithField("account", a.Address.String()).Warn("skipping proposal")
			continue
		}
		out = append(out, &Proposal{Address: a.Address, Proposal: p})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}
