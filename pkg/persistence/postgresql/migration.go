package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Documents and their validation workflows
			CREATE TABLE documents (
				id VARCHAR(255) PRIMARY KEY,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'in_progress', 'completed', 'rejected', 'archived')),
				workflow_id VARCHAR(255),
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_documents_status ON documents(status);

			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				document_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'completed', 'rejected', 'cancelled')),
				revision BIGINT NOT NULL,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_document_id ON workflows(document_id);
			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
		`,
		2: `
			-- Participant directory and audit trail
			CREATE TABLE participants (
				email VARCHAR(320) PRIMARY KEY,
				data JSONB NOT NULL,
				usage_count INT NOT NULL DEFAULT 0,
				last_used_at TIMESTAMP WITH TIME ZONE
			);

			CREATE TABLE activity_log (
				id VARCHAR(255) PRIMARY KEY,
				type VARCHAR(100) NOT NULL,
				description TEXT NOT NULL,
				document_id VARCHAR(255),
				workflow_id VARCHAR(255),
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_activity_log_workflow_id ON activity_log(workflow_id, created_at);
			CREATE INDEX idx_activity_log_document_id ON activity_log(document_id, created_at);
		`,
		3: `
			-- Retention and deadline reminders
			CREATE TABLE document_retention (
				id VARCHAR(255) PRIMARY KEY,
				document_id VARCHAR(255) NOT NULL UNIQUE,
				document_name TEXT NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('scheduled', 'deleted', 'cancelled')),
				scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
				delete_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_document_retention_due ON document_retention(status, delete_at);

			CREATE TABLE reminders (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				document_id VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'sent', 'dismissed')),
				due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				sent_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_reminders_workflow_id ON reminders(workflow_id);
			CREATE INDEX idx_reminders_due ON reminders(status, due_at);
		`,
	}
}
