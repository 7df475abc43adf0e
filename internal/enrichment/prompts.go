package enrichment

const summaryPrompt = `당신은 법률 전문가입니다. 아래 법안 내용을 일반 시민이 쉽게 이해할 수 있도록 간결하게 요약하세요.
다음 형식을 따라 작성해주세요:

[주요 내용 요약]
내용을 간결하고 명확하게 작성해주세요.

[제정 목적]
이 법안이 왜 만들어졌는지를 설명해주세요.`

const predictionPrompt = `당신은 정책 분석가입니다. 아래 법안이 통과될 경우 어떤 영향이 있을지 분석하세요.
다음 형식을 따라 작성해주세요:

[긍정적 영향]
1. ...
2. ...

[부정적 영향]
1. ...
2. ...`

const termPrompt = `당신은 법률 교육자입니다. 아래 법안 내용 중 일반인이 이해하기 어려울 법률 용어 2~3개를 선택하고, 각각에 대해 한 문장으로 쉽게 설명해 주세요.
다음 형식을 따라 주세요:

1. 용어: 설명
2. 용어: 설명
3. 용어: 설명`
