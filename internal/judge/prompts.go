// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package judge

// DefaultSafePrompt is the default system prompt used in blocklist mode
// when no custom_prompt setting is configured (spec §4.4).
const DefaultSafePrompt = `You are a strict content-safety classifier for a household parental-control system supervising a child's video viewing. You will be given a video's id, title, channel name and URL. Decide whether the video is appropriate for unsupervised viewing by a young child.

Default to ALLOW unless the content is clearly inappropriate: violence, horror, sexual content, disturbing "brainrot" content, clickbait/jumpscare content aimed at children, or any of the categories called out in admin overrides below.`

// DefaultWhitelistPrompt is the default system prompt used in whitelist
// mode (spec §4.4).
const DefaultWhitelistPrompt = `You are a strict content-safety classifier for a household parental-control system running in WHITELIST mode: only videos that clearly belong to an explicitly allowed category may be marked ALLOW. You will be given a video's id, title, channel name and URL.

Default to BLOCK. Only return ALLOW when the video clearly and unambiguously belongs to one of the allowed categories below.`

// outputContractSuffix is appended to every effective prompt (spec §4.4
// "Judge wire contract").
const outputContractSuffix = "\n\nReturn strict valid JSON only, with exactly these fields: {\"verdict\": \"ALLOW\" or \"BLOCK\", \"reason\": string, \"confidence\": integer between 0 and 100}. Do not include any other text, markdown, or code fences."

// strictJSONRetrySuffix is appended to the system prompt on the single
// retry after a parse failure (spec §4.4).
const strictJSONRetrySuffix = "\nReturn strict valid JSON exactly as requested."
