package service

import "context"

type testTxRepos struct {
	general    GeneralKnowledgeRepositoryInterface
	members    MemberRepositoryInterface
	categories CategoryRepositoryInterface
	indexJobs  IndexJobRepositoryInterface
}

func (t *testTxRepos) GeneralKnowledge() GeneralKnowledgeRepositoryInterface {
	return t.general
}

func (t *testTxRepos) Members() MemberRepositoryInterface {
	return t.members
}

func (t *testTxRepos) Categories() CategoryRepositoryInterface {
	return t.categories
}

func (t *testTxRepos) IndexJobs() IndexJobRepositoryInterface {
	return t.indexJobs
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
